/*
Package config loads Burrow's optional YAML configuration document.

The document names the commit-log path, flush interval, and the two auxiliary
HTTP endpoints (metrics and status):

	bind: 127.0.0.1
	port: 11211
	commit_log: /var/lib/burrow/burrow.db.log
	flush_interval: 5
	metrics_addr: 127.0.0.1:9100
	status_addr: 127.0.0.1:8080

Explicitly set command-line flags override document values.
*/
package config
