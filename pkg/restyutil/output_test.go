package restyutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		fmt.Fprint(w, "hello from upstream")
	}))
	defer server.Close()

	output := NewMemoryOutput()
	client := resty.New()
	Dump(client, output)

	_, err := client.R().
		SetFormData(map[string]string{"RollNo": "123"}).
		Post(server.URL + "/login")
	require.NoError(t, err)
	_, err = client.R().Get(server.URL + "/other")
	require.NoError(t, err)

	require.Equal(t, 2, output.Len())
	var first string
	for id, message := range output.Messages {
		if strings.HasSuffix(id, "-1") {
			first = message
		}
	}
	require.Contains(t, first, "POST "+server.URL+"/login")
	require.Contains(t, first, "RollNo=123")
	require.Contains(t, first, "X-Test: yes")
	require.Contains(t, first, "hello from upstream")
}

func TestDumpBodylessGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "captcha bytes")
	}))
	defer server.Close()

	output := NewMemoryOutput()
	client := resty.New()
	Dump(client, output)

	res, err := client.R().Get(server.URL + "/captcha")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())

	require.Equal(t, 1, output.Len())
	for _, message := range output.Messages {
		require.Contains(t, message, "GET "+server.URL+"/captcha")
		require.Contains(t, message, "captcha bytes")
	}
}

func TestDumpNilOutput(t *testing.T) {
	client := resty.New()
	Dump(client, nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale"), []byte("x"), 0600))

	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "stale"))
	require.True(t, os.IsNotExist(err))

	output.Write("1-1", "message")
	contents, err := os.ReadFile(filepath.Join(dir, "1-1"))
	require.NoError(t, err)
	require.Equal(t, "message", string(contents))
}
