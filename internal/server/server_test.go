package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonstreamer/internal/client"
	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/testutil"
	"github.com/roach88/jsonstreamer/internal/wire"
)

const fixture = "{\"name\": \"demo\", \"tags\": [\"x\", \"y\"], \"n\": 3}\n"

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	*httptest.Server
	sleeper *testutil.RecordingSleeper
	logs    *syncBuffer
}

func newTestServer(t *testing.T, dir string) *testServer {
	t.Helper()
	sleeper := testutil.NewRecordingSleeper()
	logs := &syncBuffer{}
	srv := New(Options{
		Document:   "main.json",
		SearchDirs: []string{dir},
		Pacing:     emitter.DefaultPacing(),
		Sleeper:    sleeper,
		IDs:        testutil.NewFixedIDGenerator("stream-1"),
		Logger:     slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, sleeper: sleeper, logs: logs}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"message":"Welcome to JSON Streamer"}`, string(readBody(t, resp)))
}

func TestUnknownPath(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreams_Golden(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", fixture)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
	}{
		{"delta", http.MethodGet, "/test", "", "text/event-stream"},
		{"snapshot", http.MethodGet, "/stream", "", "text/event-stream"},
		{"lines", http.MethodPost, "/stream", `{"prompt": "tell me a story"}`, "text/plain; charset=utf-8"},
		{"raw", http.MethodGet, "/raw", "", "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, dir)
			resp := ts.do(t, tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, "stream-1", resp.Header.Get(StreamIDHeader))
			assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
			golden(t).Assert(t, tt.name, readBody(t, resp))
		})
	}
}

func TestStreams_MissingDocument_Golden(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"delta_missing", http.MethodGet, "/test"},
		{"snapshot_missing", http.MethodGet, "/stream"},
		{"lines_missing", http.MethodPost, "/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, t.TempDir())
			resp := ts.do(t, tt.method, tt.path, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode, "streaming errors are reported in-band")
			golden(t).Assert(t, tt.name, readBody(t, resp))
			assert.Zero(t, ts.sleeper.Count())
		})
	}
}

func TestRaw_MissingDocument(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.do(t, http.MethodGet, "/raw", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get(StreamIDHeader), "no stream is opened")
	assert.Equal(t, `{"error":"could not load main.json file"}`, string(readBody(t, resp)))
}

func TestRaw_InvalidDocument(t *testing.T) {
	ts := newTestServer(t, testutil.WriteDocument(t, "main.json", `{"a": `))
	resp := ts.do(t, http.MethodGet, "/raw", "")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, `{"error":"could not parse main.json file"}`, string(readBody(t, resp)))
}

func TestSnapshot_InvalidDocument(t *testing.T) {
	ts := newTestServer(t, testutil.WriteDocument(t, "main.json", `[1, 2`))
	resp := ts.do(t, http.MethodGet, "/stream", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"data: {\"data\":\"{\\\"error\\\":\\\"could not parse main.json file\\\"}\"}\n\ndata: {\"data\":null}\n\n",
		string(readBody(t, resp)))
}

func TestPrompt_EmptyBodyAllowed(t *testing.T) {
	ts := newTestServer(t, testutil.WriteDocument(t, "main.json", `[1]`))
	resp := ts.do(t, http.MethodPost, "/stream", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]\n[1]\n", string(readBody(t, resp)))
}

func TestPrompt_MalformedBody(t *testing.T) {
	ts := newTestServer(t, testutil.WriteDocument(t, "main.json", `[1]`))
	resp := ts.do(t, http.MethodPost, "/stream", `{"prompt":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `{"error":"invalid request body"}`, string(readBody(t, resp)))
	assert.Zero(t, ts.sleeper.Count())
}

func TestStreams_Pacing(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", fixture)

	tests := []struct {
		path  string
		delay time.Duration
		count int
	}{
		{"/test", emitter.DeltaDelay, 9},
		{"/stream", emitter.SnapshotDelay, 4},
		{"/raw", emitter.RawDelay, len(fixture)},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ts := newTestServer(t, dir)
			readBody(t, ts.do(t, http.MethodGet, tt.path, ""))

			require.Equal(t, tt.count, ts.sleeper.Count())
			for _, d := range ts.sleeper.Delays() {
				assert.Equal(t, tt.delay, d)
			}
		})
	}
}

func TestClientRoundTrip(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", fixture)
	ts := newTestServer(t, dir)

	for _, format := range wire.Formats {
		t.Run(string(format), func(t *testing.T) {
			st, err := client.Open(context.Background(), ts.Client(), ts.URL, format, "hello")
			require.NoError(t, err)
			defer st.Close()
			assert.Equal(t, "stream-1", st.ID)

			events, err := st.All()
			require.NoError(t, err)
			text, err := client.Reassemble(events)
			require.NoError(t, err)

			switch format {
			case wire.FormatDelta, wire.FormatRaw:
				assert.Equal(t, fixture, text)
			default:
				assert.JSONEq(t, fixture, text)
			}
		})
	}
}

func TestClientOpen_RawError(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	_, err := client.Open(context.Background(), ts.Client(), ts.URL, wire.FormatRaw, "")

	var he *client.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Equal(t, "could not load main.json file", he.Message)
}

func TestEachRequestLoadsTheDocument(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", `[1]`)
	ts := newTestServer(t, dir)

	assert.Equal(t, "[]\n[1]\n", string(readBody(t, ts.do(t, http.MethodPost, "/stream", ""))))

	testutil.OverwriteDocument(t, dir, "main.json", `[2, 3]`)
	assert.Equal(t, "[]\n[2]\n[2,3]\n", string(readBody(t, ts.do(t, http.MethodPost, "/stream", ""))))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, t.TempDir())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Credentialed requests need the origin echoed back, never "*".
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	get, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	get.Header.Set("Origin", "http://example.com")
	resp2, err := ts.Client().Do(get)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "http://example.com", resp2.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp2.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	srv := New(Options{
		Document:       "main.json",
		SearchDirs:     []string{t.TempDir()},
		AllowedOrigins: []string{"http://allowed.example"},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"listed", "http://allowed.example", "http://allowed.example"},
		{"unlisted", "http://other.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)
			resp, err := ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHead_SendsHeadersWithoutStreaming(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", fixture)

	tests := []struct {
		path        string
		contentType string
	}{
		{"/test", "text/event-stream"},
		{"/stream", "text/event-stream"},
		{"/raw", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ts := newTestServer(t, dir)
			resp := ts.do(t, http.MethodHead, tt.path, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
			assert.Empty(t, readBody(t, resp))
			assert.Zero(t, ts.sleeper.Count(), "HEAD must not pace a stream")
			assert.NotContains(t, ts.logs.String(), "stream opened")
		})
	}
}

func TestHead_RawMissingDocument(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.do(t, http.MethodHead, "/raw", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Zero(t, ts.sleeper.Count())
}

// failingWriter accepts headers but fails every body write.
type failingWriter struct {
	header http.Header
	status int
}

func (w *failingWriter) Header() http.Header       { return w.header }
func (w *failingWriter) WriteHeader(status int)    { w.status = status }
func (w *failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteJSON_LogsWriteFailureOnServerLogger(t *testing.T) {
	logs := &syncBuffer{}
	srv := New(Options{
		Document: "main.json",
		Logger:   slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	w := &failingWriter{header: http.Header{}}
	srv.writeJSON(w, http.StatusTeapot, WelcomeMessage{Message: "hi"})

	assert.Equal(t, http.StatusTeapot, w.status)
	assert.Equal(t, "application/json", w.header.Get("Content-Type"))
	assert.Contains(t, logs.String(), `msg="writing response failed" status=418`)
}

func TestClientDisconnectAbandonsStream(t *testing.T) {
	dir := testutil.WriteDocument(t, "main.json", `{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}`)
	logs := &syncBuffer{}
	srv := New(Options{
		Document:   "main.json",
		SearchDirs: []string{dir},
		Pacing:     emitter.Pacing{SnapshotDelay: 50 * time.Millisecond},
		IDs:        testutil.NewFixedIDGenerator("stream-1"),
		Logger:     slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	st, err := client.Open(ctx, ts.Client(), ts.URL, wire.FormatSnapshot, "")
	require.NoError(t, err)

	ev, err := st.Next()
	require.NoError(t, err)
	assert.Equal(t, "{}", ev.Text)

	cancel()
	st.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "stream abandoned")
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, logs.String(), "stream completed")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(Options{Document: "main.json", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe(t *testing.T) {
	// Reserve a free port, then release it for the server to bind.
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := reserved.Addr().String()
	require.NoError(t, reserved.Close())

	srv := New(Options{Addr: addr, Document: "main.json", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(Options{Addr: ln.Addr().String(), Document: "main.json", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	err = srv.ListenAndServe(context.Background())
	require.Error(t, err)

	var opErr *net.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "listen", opErr.Op)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
