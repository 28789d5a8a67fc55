package command

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/types"
)

// GetCommand reads the value record for a key. It carries no opcode and never
// enters the commit log.
type GetCommand struct {
	Key []byte
}

// NewGetCommand creates a GET for the given key.
func NewGetCommand(key []byte) *GetCommand {
	return &GetCommand{Key: key}
}

// Visit returns the current value record or ErrMissingKey.
func (c *GetCommand) Visit(s Store) (*types.Item, error) {
	item, err := s.Get(c.Key)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *GetCommand) String() string {
	return fmt.Sprintf("GET %s", c.Key)
}
