package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/burrow/pkg/command"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the storage engine. It owns the live map, the pending-change sets,
// the current commit id, and the two persistence sinks (commit log and
// checkpoint database).
//
// Apply and Flush take the engine mutex and are atomic with respect to one
// another. The map-like primitives Get, Set and Delete do not lock; they are
// the surface commands execute against and run only under Apply's lock (or
// single-threaded in tests). External readers use the locked accessors Item,
// Keys and Len.
type Store struct {
	mu sync.Mutex

	data          map[string]types.Item
	pendingInsert map[string]struct{}
	pendingUpdate map[string]struct{}
	pendingDelete map[string]struct{}

	// commitID is the id of the most recently durably recorded mutation.
	commitID uuid.UUID

	commitLog  *CommitLog
	checkpoint *Checkpoint
	logger     zerolog.Logger
}

// New creates a store over the given persistence sinks without recovering
// state. Most callers want Open.
func New(checkpoint *Checkpoint, commitLog *CommitLog) *Store {
	return &Store{
		data:          make(map[string]types.Item),
		pendingInsert: make(map[string]struct{}),
		pendingUpdate: make(map[string]struct{}),
		pendingDelete: make(map[string]struct{}),
		commitLog:     commitLog,
		checkpoint:    checkpoint,
		logger:        log.WithComponent("store"),
	}
}

// Open opens the checkpoint database and commit log at the given paths and
// recovers the store: the checkpoint is loaded first, then commit-log records
// written since the last checkpoint are replayed in order.
func Open(dbPath, logPath string) (*Store, error) {
	checkpoint, err := OpenCheckpoint(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	commitLog, err := OpenCommitLog(logPath)
	if err != nil {
		checkpoint.Close()
		return nil, fmt.Errorf("failed to open commit log: %w", err)
	}

	s := New(checkpoint, commitLog)
	if err := s.recover(); err != nil {
		commitLog.Close()
		checkpoint.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the persistence sinks. It does not flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.commitLog.Close()
	if cerr := s.checkpoint.Close(); err == nil {
		err = cerr
	}
	return err
}

// recover loads the checkpoint into the live map and replays the commit log.
// A corrupt log tail halts replay at the last well-formed record; the store
// keeps serving with what was recovered.
func (s *Store) recover() error {
	items, commitID, err := s.checkpoint.Load()
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	s.data = items
	s.commitID = commitID

	var numBytes int
	for _, item := range items {
		numBytes += item.Size()
	}
	metrics.NumKeys.Set(float64(len(items)))
	metrics.NumBytes.Set(float64(numBytes))
	s.logger.Info().
		Int("rows", len(items)).
		Str("commit_id", commitID.String()).
		Msg("loaded checkpoint")

	err = s.commitLog.Replay(func(id uuid.UUID, m command.Mutation) error {
		s.logger.Info().
			Str("commit_id", id.String()).
			Stringer("command", m).
			Msg("replaying commit")
		// Replay goes through Visit, not Apply: the record must not be
		// re-appended to the log. A DELETE already reflected in the
		// checkpoint replays against an absent key; skip it.
		if _, err := m.Visit(s); err != nil && !errors.Is(err, command.ErrMissingKey) {
			return err
		}
		s.commitID = id
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("commit log corrupt, replay halted")
	}
	return nil
}

// Get returns the current value record or ErrMissingKey.
func (s *Store) Get(key []byte) (types.Item, error) {
	item, ok := s.data[string(key)]
	if !ok {
		return types.Item{}, command.ErrMissingKey
	}
	return item, nil
}

// Set installs a value record and updates the pending sets. The key moves to
// pending-insert when it is new to both the map and the database, to
// pending-update when it exists on disk, and stays in pending-insert when it
// overwrites a not-yet-flushed insert.
func (s *Store) Set(key []byte, value types.Item) {
	k := string(key)
	if _, exists := s.data[k]; !exists {
		metrics.NumKeys.Inc()
		if _, deleted := s.pendingDelete[k]; !deleted {
			// The key is not in the database, so the next
			// checkpoint must insert it.
			s.pendingInsert[k] = struct{}{}
		} else {
			// The key is in the database but was deleted locally.
			// Clear the delete and mark it for update.
			delete(s.pendingDelete, k)
			s.pendingUpdate[k] = struct{}{}
		}
	} else {
		if _, inserted := s.pendingInsert[k]; !inserted {
			// Updating a key that is already in the database.
			s.pendingUpdate[k] = struct{}{}
		}
		metrics.NumBytes.Sub(float64(s.data[k].Size()))
	}
	metrics.NumBytes.Add(float64(value.Size()))
	s.data[k] = value
}

// Delete removes a key, returning ErrMissingKey if it is absent. A key that
// was pending insert simply drops out of the pending sets; a key that exists
// on disk moves to pending-delete.
func (s *Store) Delete(key []byte) error {
	k := string(key)
	value, ok := s.data[k]
	if !ok {
		return command.ErrMissingKey
	}
	if _, inserted := s.pendingInsert[k]; !inserted {
		// The key came from the database, so the next checkpoint must
		// delete its row.
		s.pendingDelete[k] = struct{}{}
		delete(s.pendingUpdate, k)
	} else {
		// The insert never reached the database.
		delete(s.pendingInsert, k)
	}
	metrics.NumKeys.Dec()
	metrics.NumBytes.Sub(float64(value.Size()))
	delete(s.data, k)
	return nil
}

// Apply executes a command against the store. For mutations it additionally
// mints a fresh commit id and appends the serialized record to the commit log.
// This is the single entry point used by the protocol dispatcher.
func (s *Store) Apply(cmd command.Command) (*types.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := cmd.Visit(s)
	if err != nil {
		return nil, err
	}
	if m, ok := cmd.(command.Mutation); ok {
		if err := s.commit(m); err != nil {
			return nil, err
		}
		metrics.NumCommits.Inc()
	}
	return item, nil
}

// commit appends the mutation to the commit log and advances the commit id.
// The id is advanced only after the record is fully written.
func (s *Store) commit(m command.Mutation) error {
	id, err := uuid.NewUUID()
	if err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to mint commit id: %w", err)
	}

	timer := metrics.NewTimer()
	s.logger.Info().Str("commit_id", id.String()).Msg("committing")
	if err := s.commitLog.Append(id, m.Opcode(), m.Pack()); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to append commit: %w", err)
	}
	s.commitID = id
	timer.ObserveDuration(metrics.CommitDuration)
	return nil
}

// Flush checkpoints the pending changes into the database and truncates the
// commit log. If nothing is pending the flush is a no-op. On checkpoint
// failure the pending sets are kept so the next flush retries the same set.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty() {
		return nil
	}

	metrics.NumDBFlush.Inc()
	timer := metrics.NewTimer()

	upserts := make(map[string]types.Item, len(s.pendingInsert)+len(s.pendingUpdate))
	for k := range s.pendingInsert {
		upserts[k] = s.data[k]
	}
	for k := range s.pendingUpdate {
		upserts[k] = s.data[k]
	}
	deletes := make([]string, 0, len(s.pendingDelete))
	for k := range s.pendingDelete {
		deletes = append(deletes, k)
	}

	if err := s.checkpoint.Save(upserts, deletes, s.commitID); err != nil {
		metrics.FlushErrors.Inc()
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	// The database transaction has committed; only now is it safe to drop
	// the pending sets and truncate the log. A crash before the truncate
	// replays records the checkpoint already holds, which is harmless.
	s.pendingInsert = make(map[string]struct{})
	s.pendingUpdate = make(map[string]struct{})
	s.pendingDelete = make(map[string]struct{})

	if err := s.commitLog.Reset(); err != nil {
		metrics.FlushErrors.Inc()
		return fmt.Errorf("failed to truncate commit log: %w", err)
	}

	timer.ObserveDuration(metrics.FlushDuration)
	return nil
}

func (s *Store) dirty() bool {
	return len(s.pendingInsert) > 0 || len(s.pendingUpdate) > 0 || len(s.pendingDelete) > 0
}

// Item returns the value record for a key under the engine lock.
func (s *Store) Item(key []byte) (types.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Get(key)
}

// Keys returns a snapshot of all live keys.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// CommitID returns the id of the most recent durably recorded mutation, or
// uuid.Nil when the store has never committed.
func (s *Store) CommitID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitID
}

// DumpItems logs the contents of the live map.
func (s *Store) DumpItems() {
	for k, item := range s.data {
		s.logger.Debug().
			Str("key", k).
			Uint16("flags", item.Flags).
			Uint32("exptime", item.Exptime).
			Int("bytes", item.Size()).
			Msg("item")
	}
}

// DumpCommits logs the decoded contents of the commit log.
func (s *Store) DumpCommits() {
	records, err := s.commitLog.Records()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read commit log")
		return
	}
	for _, rec := range records {
		s.logger.Debug().
			Str("commit_id", rec.ID.String()).
			Stringer("command", rec.Command).
			Msg("commit")
	}
}

// DumpCommitID logs the current commit id.
func (s *Store) DumpCommitID() {
	s.logger.Debug().Str("commit_id", s.commitID.String()).Msg("commit id")
}
