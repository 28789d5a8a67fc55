package command

import (
	"fmt"
	"io"

	"github.com/cuemby/burrow/pkg/types"
)

// SetCommand installs a value record under a key.
//
// Payload: key_len:u32 | key | flags:u16 | exptime:u32 | data_len:u32 | data.
type SetCommand struct {
	Key     []byte
	Flags   uint16
	Exptime uint32
	Data    []byte
}

// NewSetCommand creates a SET for the given key and value fields.
func NewSetCommand(key []byte, flags uint16, exptime uint32, data []byte) *SetCommand {
	return &SetCommand{
		Key:     key,
		Flags:   flags,
		Exptime: exptime,
		Data:    data,
	}
}

// Visit installs the value record into the store. SET never fails.
func (c *SetCommand) Visit(s Store) (*types.Item, error) {
	s.Set(c.Key, types.Item{
		Flags:   c.Flags,
		Exptime: c.Exptime,
		Data:    c.Data,
	})
	return nil, nil
}

// Opcode returns the stable wire identifier for SET.
func (c *SetCommand) Opcode() uint16 {
	return OpcodeSet
}

// Pack serializes the command payload.
func (c *SetCommand) Pack() []byte {
	buf := make([]byte, 0, 4+len(c.Key)+2+4+4+len(c.Data))
	buf = appendVLS(buf, c.Key)

	var flags [2]byte
	putUint16(flags[:], c.Flags)
	buf = append(buf, flags[:]...)

	var exptime [4]byte
	putUint32(exptime[:], c.Exptime)
	buf = append(buf, exptime[:]...)

	return appendVLS(buf, c.Data)
}

func unpackSet(r io.Reader) (Mutation, error) {
	key, err := readVLS(r)
	if err != nil {
		return nil, err
	}
	flags, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	exptime, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	data, err := readVLS(r)
	if err != nil {
		return nil, err
	}
	return NewSetCommand(key, flags, exptime, data), nil
}

func (c *SetCommand) String() string {
	return fmt.Sprintf("SET %s", c.Key)
}
