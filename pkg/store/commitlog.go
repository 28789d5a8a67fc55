package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/burrow/pkg/command"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CommitLog is the append-only stream of mutation records. Each record is
// commit_id(16) | opcode(u16 LE) | payload. Records are written one per Apply
// and the whole file is truncated after a successful checkpoint.
type CommitLog struct {
	file   *os.File
	logger zerolog.Logger
}

// LoggedCommit is one decoded commit-log record.
type LoggedCommit struct {
	ID      uuid.UUID
	Command command.Mutation
}

// OpenCommitLog opens (creating if absent) the commit log at path, positioned
// for append.
func OpenCommitLog(path string) (*CommitLog, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, err
	}
	return &CommitLog{
		file:   file,
		logger: log.WithComponent("commitlog"),
	}, nil
}

// Append writes one record and syncs it to disk. An fsync failure is logged
// and counted but does not fail the append; the record is applied for online
// semantics and may be lost on crash.
func (l *CommitLog) Append(id uuid.UUID, opcode uint16, payload []byte) error {
	record := make([]byte, 0, 16+2+len(payload))
	record = append(record, id[:]...)

	var op [2]byte
	binary.LittleEndian.PutUint16(op[:], opcode)
	record = append(record, op[:]...)
	record = append(record, payload...)

	if _, err := l.file.Write(record); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		metrics.CommitErrors.Inc()
		l.logger.Error().Err(err).Msg("error syncing commit log")
	}
	return nil
}

// Replay reads the log from offset zero and invokes fn for each record in
// on-disk order. A clean EOF at a record boundary ends replay; a record that
// ends mid-field or carries an unknown opcode halts replay with an error. The
// file is repositioned for append afterwards either way.
func (l *CommitLog) Replay(fn func(id uuid.UUID, m command.Mutation) error) error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	defer l.file.Seek(0, io.SeekEnd)

	r := bufio.NewReader(l.file)
	for {
		var idbuf [16]byte
		if _, err := io.ReadFull(r, idbuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: short commit id", command.ErrTruncated)
		}
		id, err := uuid.FromBytes(idbuf[:])
		if err != nil {
			return fmt.Errorf("bad commit id: %w", err)
		}

		var opbuf [2]byte
		if _, err := io.ReadFull(r, opbuf[:]); err != nil {
			return fmt.Errorf("%w: short opcode", command.ErrTruncated)
		}
		opcode := binary.LittleEndian.Uint16(opbuf[:])

		m, err := command.Unpack(opcode, r)
		if err != nil {
			return err
		}
		if err := fn(id, m); err != nil {
			return err
		}
	}
}

// Records decodes the whole log into memory.
func (l *CommitLog) Records() ([]LoggedCommit, error) {
	var records []LoggedCommit
	err := l.Replay(func(id uuid.UUID, m command.Mutation) error {
		records = append(records, LoggedCommit{ID: id, Command: m})
		return nil
	})
	return records, err
}

// Reset truncates the log to zero bytes.
func (l *CommitLog) Reset() error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return l.file.Truncate(0)
}

// Size returns the current byte length of the log file.
func (l *CommitLog) Size() (int64, error) {
	info, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the underlying file.
func (l *CommitLog) Close() error {
	return l.file.Close()
}
