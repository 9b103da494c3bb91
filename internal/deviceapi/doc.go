// Package deviceapi implements the JSON-over-HTTP CGI protocol spoken by
// network video devices for overlay and widget configuration.
//
// Every call is a POST of {apiVersion, context, method, params} to a
// kind-specific endpoint path; the device answers with {data} on success
// or {error: {code, message}} on failure.
//
// # Error taxonomy
//
// The distinction between transport failures and business errors is
// load-bearing for callers:
//
//   - Transport failure (device unreachable, non-JSON body, unexpected
//     status): IsTransportFailure reports true. The support gate marks the
//     whole feature unsupported; a page reload / process restart is the
//     recovery path.
//   - Business error ({error} in a well-formed response): IsAPIError
//     reports true. The feature stays enabled and the error is surfaced
//     once to the user.
//   - Validation error (bad local input): IsValidationError reports true.
//     No request was made.
//
// No call is ever retried automatically.
//
// # Usage
//
//	client := deviceapi.NewClient("192.168.0.90", 80)
//	client.SetAuth("root", password)
//
//	data, err := client.Call(ctx, store.OverlayEndpoint, "list", nil)
//	if deviceapi.IsTransportFailure(err) {
//	    // overlays unsupported on this device
//	}
package deviceapi
