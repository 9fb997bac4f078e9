// Package prometheus renders voicegrant metrics in Prometheus text
// exposition format.
//
// Issuance outcomes are one series, voicegrant_issue_total, labelled by
// outcome; verifications are voicegrant_verify_total labelled by result.
// voicegrant_signing_keys_configured is 0 while the server refuses every
// request for lack of key material.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
