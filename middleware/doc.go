// Package middleware exposes an HTTP guard that admits requests carrying a
// bearer token accepted by voicegrant.Engine.Verify.
//
// The guard reads the Authorization header, delegates the decision to the
// verifier, and injects the verified claims into the request context. It
// never parses tokens itself.
package middleware
