// Package httpapi serves token issuance over HTTP on an echo router.
//
// The token route is registered with echo's Any so that method dispatch,
// CORS headers and error bodies stay byte-compatible with existing browser
// clients. The same router exposes /healthz, /metrics and a bearer-guarded
// introspection route.
package httpapi
