// Package wurm provides a client for the Wurm REST API status endpoint.
//
// The Wurm REST API exposes the state of a Wurm Unlimited game server. This
// client implements the status check, GET /server/status, and validates the
// JSON envelope returned by the server.
//
// # Basic Usage
//
//	client := wurm.NewClient(&wurm.ClientConfig{
//	    Host: "localhost",
//	    Port: 8080,
//	})
//
//	status, err := client.GetStatus(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(status.Running, status.Connected, status.TimeStamp)
//
// For callers that prefer a deferred result, GetStatusAsync returns a channel
// that yields a single Outcome.
//
// # Error Handling
//
// Every failure is returned as *APIError. Kind tells the failure apart without
// parsing the message, and Root returns the error created where the failure
// was detected:
//
//	status, err := client.GetStatus(ctx)
//	var apiErr *wurm.APIError
//	if errors.As(err, &apiErr) {
//	    switch apiErr.Kind {
//	    case wurm.KindTransport:
//	        // Server unreachable
//	    case wurm.KindHTTPStatus:
//	        log.Printf("status code %d", apiErr.StatusCode)
//	    case wurm.KindRemoteError:
//	        log.Printf("server said: %s", apiErr.RemoteMessage)
//	    }
//	}
package wurm
