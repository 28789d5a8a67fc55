package command

import (
	"encoding/binary"
	"fmt"
	"io"
)

// All fields are little-endian regardless of host byte order. Variable-length
// strings are a u32 length prefix followed by that many bytes.

func putUint16(buf []byte, v uint16) {
	binary.LittleEndian.PutUint16(buf, v)
}

func putUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func appendVLS(buf []byte, s []byte) []byte {
	var lenbuf [4]byte
	putUint32(lenbuf[:], uint32(len(s)))
	buf = append(buf, lenbuf[:]...)
	return append(buf, s...)
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readVLS(r io.Reader) ([]byte, error) {
	size, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, truncated(err)
	}
	return buf, nil
}

// truncated maps short reads to ErrTruncated. A record that ends mid-field is
// indistinguishable from a torn write, so both read as end-of-log corruption.
func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}
