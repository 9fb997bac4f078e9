// Package voicegrant issues short-lived HS256 access tokens that authorize a
// client to register with a real-time voice platform as a given identity.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Issuance is stateless; nothing about an issued token is
// retained.
//
// # Architecture boundaries
//
// voicegrant is the public surface. It exposes [Engine], [Builder], [Config],
// [KeyMaterial] and value types ([CredentialRequest], [IssuedToken],
// [MetricsSnapshot]). Token layout and signing live in the token package;
// rate limiting and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Log, return, or serialize the signing secret.
//   - Return a token when any step of issuance failed.
//   - Perform I/O in Issue beyond the optional Redis rate limiter and the
//     audit sink.
package voicegrant
