/*
Package log provides structured logging for Burrow using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initializing the Logger:

	import "github.com/cuemby/burrow/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component Loggers:

	storeLog := log.WithComponent("store")
	storeLog.Info().Str("key", "foo").Msg("key deleted")

	connLog := log.WithConn(conn.RemoteAddr().String())
	connLog.Debug().Msg("connection closed")

Components used across Burrow: store, commitlog, checkpoint, flusher, server,
api.
*/
package log
