package command

import "github.com/cuemby/burrow/pkg/types"

// The DUMP family are read-only debug verbs. They log store internals and
// return nothing to the protocol layer.

// DumpCommand logs the contents of the live map.
type DumpCommand struct{}

func (c *DumpCommand) Visit(s Store) (*types.Item, error) {
	s.DumpItems()
	return nil, nil
}

func (c *DumpCommand) String() string { return "DUMP" }

// DumpLogCommand logs the decoded contents of the commit log.
type DumpLogCommand struct{}

func (c *DumpLogCommand) Visit(s Store) (*types.Item, error) {
	s.DumpCommits()
	return nil, nil
}

func (c *DumpLogCommand) String() string { return "DUMP_LOG" }

// DumpCommitCommand logs the current commit id.
type DumpCommitCommand struct{}

func (c *DumpCommitCommand) Visit(s Store) (*types.Item, error) {
	s.DumpCommitID()
	return nil, nil
}

func (c *DumpCommitCommand) String() string { return "DUMP_COMMIT" }
