package types

// Item is a stored value record. Flags and Exptime are held verbatim from the
// client; expiration is not enforced.
type Item struct {
	Flags   uint16
	Exptime uint32
	Data    []byte
}

// Size returns the number of data bytes the item accounts for.
func (i Item) Size() int {
	return len(i.Data)
}
