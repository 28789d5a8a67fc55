package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

// startServer brings up a store and a listener on an ephemeral port and
// returns a connected client.
func startServer(t *testing.T) (*store.Store, *client) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), filepath.Join(dir, "test.db.log"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := NewServer(st)
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	go srv.Serve()
	t.Cleanup(srv.Stop)

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return st, &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (c *client) send(format string, args ...any) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, format, args...)
	require.NoError(c.t, err)
}

func (c *client) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return line
}

func TestSetStored(t *testing.T) {
	st, c := startServer(t)

	c.send("SET foo 1 2 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	item, err := st.Item([]byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), item.Flags)
	assert.Equal(t, uint32(2), item.Exptime)
	assert.Equal(t, []byte("bar"), item.Data)
}

func TestSetThenGet(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1 2 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	c.send("GET foo\r\n")
	assert.Equal(t, "VALUE foo 1 3\r\n", c.readLine())
	assert.Equal(t, "bar\r\n", c.readLine())
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestGetMissing(t *testing.T) {
	_, c := startServer(t)

	c.send("GET bar\r\n")
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestGetMultipleKeys(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1 0 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())
	c.send("SET baz 2 0 4\r\nquux\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	// Missing keys are omitted silently.
	c.send("GET foo missing baz\r\n")
	assert.Equal(t, "VALUE foo 1 3\r\n", c.readLine())
	assert.Equal(t, "bar\r\n", c.readLine())
	assert.Equal(t, "VALUE baz 2 4\r\n", c.readLine())
	assert.Equal(t, "quux\r\n", c.readLine())
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestDelete(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1 2 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	c.send("DELETE foo\r\n")
	assert.Equal(t, "DELETED\r\n", c.readLine())

	c.send("DELETE foo\r\n")
	assert.Equal(t, "NOT_FOUND\r\n", c.readLine())
}

func TestUnknownVerb(t *testing.T) {
	_, c := startServer(t)

	c.send("BADCMD\r\n")
	assert.Equal(t, "ERROR\r\n", c.readLine())
}

func TestVerbCaseInsensitive(t *testing.T) {
	_, c := startServer(t)

	c.send("set foo 1 2 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	c.send("get foo\r\n")
	assert.Equal(t, "VALUE foo 1 3\r\n", c.readLine())
	assert.Equal(t, "bar\r\n", c.readLine())
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestSetNoreply(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1 2 3 noreply\r\nbar\r\n")
	// No STORED reply; the next command's reply comes straight back.
	c.send("GET foo\r\n")
	assert.Equal(t, "VALUE foo 1 3\r\n", c.readLine())
	assert.Equal(t, "bar\r\n", c.readLine())
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestDeleteNoreply(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1 2 3\r\nbar\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	c.send("DELETE foo noreply\r\n")
	c.send("GET foo\r\n")
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestSetWrongArity(t *testing.T) {
	_, c := startServer(t)

	c.send("SET foo 1\r\n")
	assert.Equal(t, "ERROR\r\n", c.readLine())
}

func TestSetBadInteger(t *testing.T) {
	_, c := startServer(t)

	// A non-integer field suppresses the reply but keeps the connection
	// open. Note no data block follows: the line never parsed far enough
	// to expect one.
	c.send("SET foo nope 2 3\r\n")
	c.send("GET foo\r\n")
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestDeleteWrongArity(t *testing.T) {
	_, c := startServer(t)

	c.send("DELETE\r\n")
	assert.Equal(t, "ERROR\r\n", c.readLine())
}

func TestBinaryData(t *testing.T) {
	_, c := startServer(t)

	data := []byte{0x00, 0x01, 0xff, 0x0d, 0x0a}
	c.send("SET bin 0 0 %d\r\n", len(data))
	c.conn.Write(data)
	c.send("\r\n")
	assert.Equal(t, "STORED\r\n", c.readLine())

	c.send("GET bin\r\n")
	assert.Equal(t, fmt.Sprintf("VALUE bin 0 %d\r\n", len(data)), c.readLine())

	block := make([]byte, len(data)+2)
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := io.ReadFull(c.r, block)
	require.NoError(t, err)
	assert.Equal(t, data, block[:len(data)])
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestOverlongLineRecovers(t *testing.T) {
	_, c := startServer(t)

	// A line longer than the reader buffer is discarded; the connection
	// keeps serving.
	huge := make([]byte, maxLineBytes+100)
	for i := range huge {
		huge[i] = 'x'
	}
	c.conn.Write(huge)
	c.send("\r\n")

	c.send("GET foo\r\n")
	assert.Equal(t, "END\r\n", c.readLine())
}

func TestEmptyLineIgnored(t *testing.T) {
	_, c := startServer(t)

	c.send("\r\n")
	c.send("GET foo\r\n")
	assert.Equal(t, "END\r\n", c.readLine())
}
