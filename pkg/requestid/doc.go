// Package requestid correlates a registry call across client and server.
//
// The registry client sends the ID found in the call context (or a fresh
// UUID) as X-Request-ID; registryd accepts it through Middleware, so both
// sides log the same request_id:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	handler := requestid.Middleware(router)
//
// Inbound IDs longer than 128 characters or containing anything other than
// letters, digits, '-' and '_' are replaced.
package requestid
