// Package history records status checks and answers queries over them
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/wurmstatus/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a status check does not exist
var ErrNotFound = errors.New("status check not found")

const defaultLimit = 100

// Service stores status checks
type Service struct {
	db *sql.DB
}

// New creates a new history service
func New(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record stores a status check, assigning an ID and timestamp when missing
func (s *Service) Record(ctx context.Context, check *domain.StatusCheck) error {
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.CheckedAt.IsZero() {
		check.CheckedAt = time.Now().UTC()
	}
	check.CheckedAt = check.CheckedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_checks (id, target, checked_at, outcome, running, connected, remote_timestamp, error_kind, error_message, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, check.ID, check.Target, check.CheckedAt, check.Outcome, check.Running, check.Connected,
		check.RemoteTimeStamp, string(check.ErrorKind), check.ErrorMessage, check.LatencyMs)
	if err != nil {
		return fmt.Errorf("failed to record status check: %w", err)
	}

	return nil
}

// Get retrieves a status check by ID
func (s *Service) Get(ctx context.Context, id string) (*domain.StatusCheck, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target, checked_at, outcome, running, connected, remote_timestamp, error_kind, error_message, latency_ms
		FROM status_checks WHERE id = $1
	`, id)

	check, err := scanCheck(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return check, nil
}

// Filter defines criteria for listing status checks
type Filter struct {
	Outcome domain.CheckOutcome
	From    time.Time
	To      time.Time
	Limit   int
}

// List retrieves status checks, newest first
func (s *Service) List(ctx context.Context, filter *Filter) ([]*domain.StatusCheck, error) {
	query := `SELECT id, target, checked_at, outcome, running, connected, remote_timestamp, error_kind, error_message, latency_ms
			  FROM status_checks WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.Outcome != "" {
			query += fmt.Sprintf(" AND outcome = $%d", paramIdx)
			args = append(args, filter.Outcome)
			paramIdx++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND checked_at >= $%d", paramIdx)
			args = append(args, filter.From.UTC())
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND checked_at <= $%d", paramIdx)
			args = append(args, filter.To.UTC())
			paramIdx++
		}
	}

	query += " ORDER BY checked_at DESC"

	limit := defaultLimit
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}
	query += fmt.Sprintf(" LIMIT $%d", paramIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status checks: %w", err)
	}
	defer rows.Close()

	checks := []*domain.StatusCheck{}
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}

	return checks, rows.Err()
}

// Latest returns the most recent status check
func (s *Service) Latest(ctx context.Context) (*domain.StatusCheck, error) {
	checks, err := s.List(ctx, &Filter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		return nil, ErrNotFound
	}
	return checks[0], nil
}

// Prune deletes checks older than the cutoff and returns how many were removed
func (s *Service) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM status_checks WHERE checked_at < $1", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune status checks: %w", err)
	}
	return res.RowsAffected()
}

// Summary aggregates checks recorded at or after since
func (s *Service) Summary(ctx context.Context, since time.Time) (*domain.Summary, error) {
	summary := &domain.Summary{Since: since.UTC()}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'ok' AND running AND connected THEN 1 ELSE 0 END), 0)
		FROM status_checks WHERE checked_at >= $1
	`, summary.Since).Scan(&summary.Total, &summary.OK, &summary.Failed, &summary.Healthy)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize status checks: %w", err)
	}

	return summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*domain.StatusCheck, error) {
	var check domain.StatusCheck
	err := row.Scan(&check.ID, &check.Target, &check.CheckedAt, &check.Outcome,
		&check.Running, &check.Connected, &check.RemoteTimeStamp, &check.ErrorKind,
		&check.ErrorMessage, &check.LatencyMs)
	if err != nil {
		return nil, err
	}
	check.CheckedAt = check.CheckedAt.UTC()
	return &check, nil
}
