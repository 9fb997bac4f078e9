// Package rate provides the Redis-backed fixed-window limiter that caps token
// issuance per identity and, optionally, per client IP.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout
// under the configured prefix:
//   - <prefix>:i:<identity-hash>: issuance per identity
//   - <prefix>:ip:<ip>          : issuance per client IP
//
// Identities are hashed so arbitrary caller input never becomes a raw key.
//
// # What this package must NOT do
//
//   - Decide HTTP status codes or error wording (the Engine maps errors).
//   - Be imported outside the voicegrant module.
package rate
