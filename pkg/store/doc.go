/*
Package store implements Burrow's storage engine: an in-memory map with
two-tier durability.

Every mutation is appended to a sequential commit log before the call returns;
a periodic flush batches the net effect of all mutations since the previous
checkpoint into a SQLite table and truncates the log. After a crash the engine
reloads the checkpoint and replays whatever the log still holds.

# Architecture

	┌───────────────────── STORAGE ENGINE ─────────────────────┐
	│                                                           │
	│  Apply(command) ──► Visit ──► live map                    │
	│        │                        │                         │
	│        │                 pending sets                     │
	│        │            (insert/update/delete)                │
	│        ▼                        │                         │
	│  commit log  ◄── commit_id | opcode | payload             │
	│  (append + fsync)               │                         │
	│                                 ▼  every interval         │
	│                      checkpoint (SQLite)                  │
	│                items(key, flags, exptime, data)           │
	│                status(id=1, commit_id)                    │
	│                                 │                         │
	│                     on success: clear pending sets,       │
	│                     truncate commit log                   │
	└───────────────────────────────────────────────────────────┘

# Pending Sets

The engine tracks three disjoint key sets describing what the next checkpoint
must do relative to the on-disk table. A key is in at most one set; keys in
pending-insert or pending-update are present in the live map, keys in
pending-delete are absent. The sets turn an arbitrary number of intermediate
mutations per key into at most one upsert or delete per checkpoint.

# Recovery

Open loads the checkpoint within one read transaction, then replays the commit
log from offset zero: 16 bytes of commit id (clean EOF ends replay), a u16
opcode, and the command payload. Replay invokes the command directly rather
than going through Apply, so nothing is re-appended to the log. A truncated or
unknown record halts replay at the last well-formed record; the process keeps
serving with the recovered state.

# Ordering

The checkpoint database commits before the commit log is truncated. A crash
between the two replays records the checkpoint already reflects, which
reproduces the same live map.

# Concurrency

Apply and Flush serialize on a single mutex, so a flush never observes a
half-applied mutation and replay semantics equal online semantics. The
map-like primitives Get, Set and Delete are lock-free and only run under
Apply's lock; external readers use the locked accessors.
*/
package store
