package command

import (
	"fmt"
	"io"

	"github.com/cuemby/burrow/pkg/types"
)

// DeleteCommand removes a key from the store.
//
// Payload: key_len:u32 | key.
type DeleteCommand struct {
	Key []byte
}

// NewDeleteCommand creates a DELETE for the given key.
func NewDeleteCommand(key []byte) *DeleteCommand {
	return &DeleteCommand{Key: key}
}

// Visit removes the key, returning ErrMissingKey if it is absent.
func (c *DeleteCommand) Visit(s Store) (*types.Item, error) {
	return nil, s.Delete(c.Key)
}

// Opcode returns the stable wire identifier for DELETE.
func (c *DeleteCommand) Opcode() uint16 {
	return OpcodeDelete
}

// Pack serializes the command payload.
func (c *DeleteCommand) Pack() []byte {
	buf := make([]byte, 0, 4+len(c.Key))
	return appendVLS(buf, c.Key)
}

func unpackDelete(r io.Reader) (Mutation, error) {
	key, err := readVLS(r)
	if err != nil {
		return nil, err
	}
	return NewDeleteCommand(key), nil
}

func (c *DeleteCommand) String() string {
	return fmt.Sprintf("DELETE %s", c.Key)
}
