// Package registry is the boundary between pushkit components and the remote
// store that holds device registrations, notification preferences and the
// notification feed.
//
// Components depend on the Registry interface. Two implementations ship with
// the package:
//
//   - Client talks to the REST API over HTTP with per-call timeouts, retries for
//     idempotent reads and an optional circuit breaker.
//   - Memory keeps everything in process. It backs tests and the reference
//     Server used by cmd/registryd.
//
// # Endpoints
//
//	GET    /push/vapid-key               -> {"publicKey": "...", "available": true}
//	POST   /push/subscriptions           {"subscription": {...}, "deviceLabel": "..."}
//	DELETE /push/subscriptions/{endpoint}
//	GET    /notifications/preferences
//	PATCH  /notifications/preferences    (X-Client-Seq header)
//	GET    /notifications?limit=N        -> {"notifications": [...]}
//	POST   /notifications/{id}/read
//	POST   /notifications/read-all
//	DELETE /notifications/{id}
//	POST   /notifications/test
//
// # Errors
//
// Transport failures, timeouts, 5xx responses and an open circuit are reported
// as ErrNetworkFailure and are safe to retry. A 503 from the key endpoint
// means the server has no push key: it is ErrServiceUnavailable and is not
// retried. 429 is ErrRateLimited. Other 4xx responses surface as *HTTPError;
// use IsStatus to inspect them.
package registry
