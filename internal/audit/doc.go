// Package audit relays token issuance and verification outcomes to a Sink
// off the request path.
//
// # Components
//
//   - [Sink]: event consumer. [LogSink] writes zerolog lines, [ChannelSink]
//     buffers for tests and embedders, [NoOpSink] discards.
//   - [Dispatcher]: buffered async relay, drop-if-full or block-if-full.
//   - [Event]: one record keyed by [Kind], with identity, jti, expiry,
//     request id, client IP and a failure code.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the Engine.
//   - Carry tokens or key material in events.
//   - Import voicegrant or any sibling internal package.
package audit
