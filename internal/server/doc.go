// Package server hosts the clipstream REST API behind a single HTTP server.
//
// The server builds a consistent middleware chain of request logging, request
// IDs, CORS, rate limiting, access-token auth, and security headers so
// handlers all share common protections and instrumentation.
package server
