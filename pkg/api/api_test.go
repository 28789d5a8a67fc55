package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/burrow/pkg/command"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestAPI(t *testing.T) (*store.Store, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), filepath.Join(dir, "test.db.log"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ts := httptest.NewServer(NewStatusServer(st).Handler())
	t.Cleanup(ts.Close)
	return st, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestAPI(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestKeysEndpoint(t *testing.T) {
	st, ts := newTestAPI(t)

	resp, err := http.Get(ts.URL + "/api/keys")
	require.NoError(t, err)
	var keys KeysResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&keys))
	resp.Body.Close()
	assert.Empty(t, keys.Keys)

	_, err = st.Apply(command.NewSetCommand([]byte("some_key"), 1, 2, []byte("some_value")))
	require.NoError(t, err)

	resp, err = http.Get(ts.URL + "/api/keys")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&keys))
	resp.Body.Close()
	assert.Equal(t, []string{"some_key"}, keys.Keys)
}

func TestValuesEndpoint(t *testing.T) {
	st, ts := newTestAPI(t)

	_, err := st.Apply(command.NewSetCommand([]byte("some_key"), 1, 2, []byte("some_value")))
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/values/some_key")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var value ValueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&value))
	assert.Equal(t, "some_key", value.Key)
	assert.Equal(t, uint16(1), value.Flags)
	assert.Equal(t, uint32(2), value.Exptime)
	assert.Equal(t, []byte("some_value"), value.Data)
}

func TestValuesEndpointMissingKey(t *testing.T) {
	_, ts := newTestAPI(t)

	resp, err := http.Get(ts.URL + "/api/values/no_such_key")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
