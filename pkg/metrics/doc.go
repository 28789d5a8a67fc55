/*
Package metrics provides Prometheus metrics for Burrow.

Metrics are declared as package-level collectors and registered with the
default registry at init time. The metrics HTTP listener exposes them via
Handler().

# Metric Groups

Storage:
  - storage_num_keys: gauge, keys in the live map
  - storage_data_bytes: gauge, bytes of live data
  - storage_num_commits: counter, commit-log records written
  - storage_commit_seconds: histogram, commit-log write latency
  - storage_commit_errors: counter, commit failures

Checkpoint:
  - storage_db_upserts / storage_db_deletes: counters, rows written per flush
  - storage_db_num_flush: counter, flushes performed
  - storage_flush_seconds: histogram, flush latency
  - storage_flush_errors: counter, flush failures

Server:
  - request_duration_seconds{command}: histogram, per-verb latency
  - request_errors{command}: counter, per-verb handler failures
  - bytes_in / bytes_out: counters, network traffic
*/
package metrics
