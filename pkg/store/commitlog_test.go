package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/burrow/pkg/command"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*CommitLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commit.log")
	l, err := OpenCommitLog(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestCommitLogAppendReplay(t *testing.T) {
	l, _ := newTestLog(t)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id, err := uuid.NewUUID()
		require.NoError(t, err)
		ids = append(ids, id)

		cmd := command.NewSetCommand(
			[]byte(fmt.Sprintf("some_key_%d", i)),
			uint16(i), uint32(i*i),
			[]byte(fmt.Sprintf("some_value_%d", i)),
		)
		require.NoError(t, l.Append(id, cmd.Opcode(), cmd.Pack()))
	}

	records, err := l.Records()
	require.NoError(t, err)
	require.Len(t, records, 5)

	// Replay must preserve on-disk order, which is append order.
	for i, rec := range records {
		assert.Equal(t, ids[i], rec.ID)
		set, ok := rec.Command.(*command.SetCommand)
		require.True(t, ok)
		assert.Equal(t, []byte(fmt.Sprintf("some_key_%d", i)), set.Key)
		assert.Equal(t, uint16(i), set.Flags)
		assert.Equal(t, uint32(i*i), set.Exptime)
		assert.Equal(t, []byte(fmt.Sprintf("some_value_%d", i)), set.Data)
	}
}

func TestCommitLogReplayMixedCommands(t *testing.T) {
	l, _ := newTestLog(t)

	set := command.NewSetCommand([]byte("some_key"), 1, 2, []byte("some_value"))
	del := command.NewDeleteCommand([]byte("some_key"))
	id1 := uuid.Must(uuid.NewUUID())
	id2 := uuid.Must(uuid.NewUUID())
	require.NoError(t, l.Append(id1, set.Opcode(), set.Pack()))
	require.NoError(t, l.Append(id2, del.Opcode(), del.Pack()))

	records, err := l.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.IsType(t, &command.SetCommand{}, records[0].Command)
	assert.IsType(t, &command.DeleteCommand{}, records[1].Command)
}

func TestCommitLogReplayTruncatedTail(t *testing.T) {
	l, path := newTestLog(t)

	set := command.NewSetCommand([]byte("some_key"), 1, 2, []byte("some_value"))
	id := uuid.Must(uuid.NewUUID())
	require.NoError(t, l.Append(id, set.Opcode(), set.Pack()))

	// A torn write: the next record stops mid-payload.
	torn := uuid.Must(uuid.NewUUID())
	partial := append([]byte{}, torn[:]...)
	partial = append(partial, 1, 0)       // opcode SET
	partial = append(partial, 3, 0, 0, 0) // key_len = 3, but no key bytes follow
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.Write(partial)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var replayed []LoggedCommit
	err = l.Replay(func(id uuid.UUID, m command.Mutation) error {
		replayed = append(replayed, LoggedCommit{ID: id, Command: m})
		return nil
	})
	assert.ErrorIs(t, err, command.ErrTruncated)

	// Replay halts at the last well-formed record.
	require.Len(t, replayed, 1)
	assert.Equal(t, id, replayed[0].ID)
}

func TestCommitLogReplayUnknownOpcode(t *testing.T) {
	l, path := newTestLog(t)

	bogus := uuid.Must(uuid.NewUUID())
	record := append([]byte{}, bogus[:]...)
	record = append(record, 99, 0) // opcode 99 is outside the command set
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.Write(record)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = l.Replay(func(uuid.UUID, command.Mutation) error { return nil })
	assert.ErrorIs(t, err, command.ErrUnknownOpcode)
}

func TestCommitLogReset(t *testing.T) {
	l, _ := newTestLog(t)

	set := command.NewSetCommand([]byte("some_key"), 1, 2, []byte("some_value"))
	require.NoError(t, l.Append(uuid.Must(uuid.NewUUID()), set.Opcode(), set.Pack()))

	size, err := l.Size()
	require.NoError(t, err)
	assert.NotZero(t, size)

	require.NoError(t, l.Reset())
	size, err = l.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	records, err := l.Records()
	require.NoError(t, err)
	assert.Empty(t, records)

	// The log keeps accepting appends after a reset.
	require.NoError(t, l.Append(uuid.Must(uuid.NewUUID()), set.Opcode(), set.Pack()))
	records, err = l.Records()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCommitLogEmptyReplay(t *testing.T) {
	l, _ := newTestLog(t)
	err := l.Replay(func(uuid.UUID, command.Mutation) error {
		t.Fatal("empty log must not replay records")
		return nil
	})
	assert.NoError(t, err)
}
