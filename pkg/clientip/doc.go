// Package clientip resolves the address of the client behind an HTTP request.
//
// Forwarding headers are only honored when listed explicitly, since any
// client can send them. Deployments behind Cloudflare pass
// "CF-Connecting-IP"; behind a plain reverse proxy, "X-Forwarded-For" or
// "X-Real-IP". With no trusted headers the TCP peer address is used.
//
//	r.Use(clientip.Middleware("X-Forwarded-For"))
//	...
//	ip := clientip.FromContext(r.Context())
//
// For X-Forwarded-For the rightmost valid entry wins: it is the one appended
// by the nearest proxy, while entries to its left are client controlled.
package clientip
