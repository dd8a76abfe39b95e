package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutOpenList(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	s, err := NewLocalStorage(Config{BasePath: base, BaseURL: "/files/"})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "ledger/snapshots/b.json", strings.NewReader(`{"b":[]}`), "application/json"))
	require.NoError(t, s.Put(ctx, "ledger/snapshots/a.json", strings.NewReader(`{"a":[]}`), "application/json"))
	require.NoError(t, s.Put(ctx, "other/c.txt", strings.NewReader("c"), "text/plain"))

	rc, err := s.Open(ctx, "ledger/snapshots/a.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, `{"a":[]}`, string(body))

	objects, err := s.List(ctx, "ledger/snapshots/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "ledger/snapshots/a.json", objects[0].Key)
	assert.Equal(t, int64(8), objects[0].Size)
	assert.Equal(t, "ledger/snapshots/b.json", objects[1].Key)

	assert.Equal(t, "/files/ledger/snapshots/a.json", s.URL("ledger/snapshots/a.json"))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(base, "ledger", "snapshots"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLocalStorage_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "k.json", strings.NewReader("one"), "text/plain"))
	require.NoError(t, s.Put(ctx, "k.json", strings.NewReader("two"), "text/plain"))

	rc, err := s.Open(ctx, "k.json")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "two", string(body))
}

func TestLocalStorage_Errors(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Open(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, key := range []string{"", "/etc/passwd", "../escape.json", "a/../../escape.json"} {
		err := s.Put(ctx, key, strings.NewReader("x"), "text/plain")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}

	objects, err := s.List(ctx, "ledger/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestNewStorage_UnknownType(t *testing.T) {
	_, err := NewStorage(Config{Type: "ftp"})
	assert.Error(t, err)

	_, err = NewStorage(Config{Type: "cloudflare_r2", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewStorage(Config{Type: "s3"})
	assert.Error(t, err)
}

// fakeS3 is a minimal path-style S3 endpoint for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/snapshots/")
	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var buf bytes.Buffer
		buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>snapshots</Name><IsTruncated>false</IsTruncated>`)
		for k, v := range f.objects {
			if strings.HasPrefix(k, prefix) {
				buf.WriteString("<Contents><Key>" + k + "</Key><Size>")
				buf.WriteString(strconv.Itoa(len(v)))
				buf.WriteString("</Size><LastModified>2024-01-01T00:00:00.000Z</LastModified></Contents>")
			}
		}
		buf.WriteString(`</ListBucketResult>`)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(buf.Bytes())
	case r.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Storage_AgainstFakeEndpoint(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3Storage(Config{
		Bucket:    "snapshots",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		Endpoint:  srv.URL,
		BaseURL:   "https://cdn.example",
	})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "ledger/snapshots/a.json", strings.NewReader(`{"a":[]}`), "application/json"))
	assert.Equal(t, []byte(`{"a":[]}`), fake.objects["ledger/snapshots/a.json"])

	objects, err := s.List(ctx, "ledger/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "ledger/snapshots/a.json", objects[0].Key)
	assert.Equal(t, int64(8), objects[0].Size)

	rc, err := s.Open(ctx, "ledger/snapshots/a.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"a":[]}`, string(body))

	_, err = s.Open(ctx, "ledger/snapshots/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "https://cdn.example/ledger/snapshots/a.json", s.URL("ledger/snapshots/a.json"))
}
