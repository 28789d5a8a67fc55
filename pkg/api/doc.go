/*
Package api provides read-only HTTP inspection endpoints over the store.

Endpoints:

	GET /api/health          liveness probe, {"status":"ok"}
	GET /api/keys            live keys, {"keys":[...]}
	GET /api/values/{key}    key, flags, exptime and data; 404 when absent

All reads take snapshots under the engine lock, so they never observe a
half-applied mutation. The Prometheus /metrics endpoint is served separately
by the metrics listener.
*/
package api
