// Package token builds, signs and verifies HS256 voice access tokens.
//
// Issuance is hand-rolled so the exact byte layout is under our control: the
// header and claims are serialized with encoding/json in declared field order,
// each segment is base64url encoded without padding, and the signature is an
// HMAC-SHA256 over "header.claims". Verification is delegated to
// github.com/golang-jwt/jwt/v5 so tokens are checked by an independent parser.
//
// # What this package must NOT do
//
//   - Read configuration or environment. Keys are passed in by the caller.
//   - Log, persist, or cache tokens or secrets.
package token
