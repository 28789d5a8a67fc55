package command

import (
	"fmt"
	"io"

	"github.com/cuemby/burrow/pkg/types"
)

// Opcodes for mutating commands. Opcodes are stable wire identifiers recorded
// in the commit log; they must never be renumbered.
const (
	OpcodeSet    uint16 = 1
	OpcodeDelete uint16 = 2
)

// Store is the surface commands execute against. The storage engine implements
// it; tests may substitute fakes.
type Store interface {
	Get(key []byte) (types.Item, error)
	Set(key []byte, value types.Item)
	Delete(key []byte) error

	// Debug hooks used by the DUMP family of commands.
	DumpItems()
	DumpCommits()
	DumpCommitID()
}

// Command is a single protocol operation applied to a store. Visit executes
// the command's effect; only GET produces a non-nil item.
type Command interface {
	Visit(s Store) (*types.Item, error)
}

// Mutation is a command that enters the commit log. It carries a stable opcode
// and a self-describing serialized form.
type Mutation interface {
	Command
	fmt.Stringer
	Opcode() uint16
	Pack() []byte
}

// Unpack decodes the payload of a mutation with the given opcode from r.
// The opcode set is closed; an opcode outside it means the log is corrupt.
func Unpack(opcode uint16, r io.Reader) (Mutation, error) {
	switch opcode {
	case OpcodeSet:
		return unpackSet(r)
	case OpcodeDelete:
		return unpackDelete(r)
	default:
		return nil, fmt.Errorf("%w: opcode %d", ErrUnknownOpcode, opcode)
	}
}
