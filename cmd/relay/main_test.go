package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := replies[n%len(replies)]
		n++
		for _, word := range strings.SplitAfter(reply, " ") {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	*app
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T, in io.Reader) testApp {
	t.Helper()
	var out, errOut bytes.Buffer
	return testApp{
		app: &app{
			in:     in,
			out:    &out,
			errOut: &errOut,
			getenv: func(k string) string {
				if k == "OPENAI_API_KEY" {
					return "sk-test"
				}
				return ""
			},
		},
		out:    &out,
		errOut: &errOut,
	}
}

func (ta testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(ta.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func baseArgs(t *testing.T, srvURL, store string) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--config", filepath.Join(dir, "absent.yaml"),
		"--base-url", srvURL,
		"--store", store,
		"--store-path", filepath.Join(dir, "store"),
		"--conversation", "c1",
		"--no-spinner",
	}
}

func TestAskThenHistory(t *testing.T) {
	t.Parallel()
	for _, store := range []string{config.StoreJSON, config.StoreSQLite, config.StoreBadger} {
		t.Run(store, func(t *testing.T) {
			t.Parallel()
			srv := openAIServer(t, "Hello, world")
			ta := newTestApp(t, strings.NewReader(""))
			args := baseArgs(t, srv.URL, store)

			require.NoError(t, ta.run(t, append([]string{"ask"}, append(args, "Hi", "there")...)...))
			assert.Contains(t, ta.out.String(), "Hello, world")

			ta.out.Reset()
			require.NoError(t, ta.run(t, append([]string{"history"}, args...)...))
			out := ta.out.String()
			assert.Contains(t, out, "user\nHi there\n")
			assert.Contains(t, out, "Hello, world\n[completed]")
		})
	}
}

func TestAsk_ProviderError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	t.Cleanup(srv.Close)

	ta := newTestApp(t, strings.NewReader(""))
	err := ta.run(t, append([]string{"ask"}, append(baseArgs(t, srv.URL, config.StoreJSON), "Hi")...)...)
	assert.ErrorIs(t, err, errReplyFailed)
	assert.Contains(t, ta.out.String(), "error: provider error (401): bad key")
}

func TestAsk_TraceWritesSessionSpan(t *testing.T) {
	t.Parallel()
	srv := openAIServer(t, "traced")
	ta := newTestApp(t, strings.NewReader(""))
	args := append(baseArgs(t, srv.URL, config.StoreJSON), "--trace", "Hi")

	require.NoError(t, ta.run(t, append([]string{"ask"}, args...)...))
	assert.Contains(t, ta.errOut.String(), `"Name": "relay.session"`)
	assert.Contains(t, ta.errOut.String(), `"relay.status"`)
}

func TestAsk_MissingKey(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, strings.NewReader(""))
	ta.getenv = func(string) string { return "" }
	err := ta.run(t, append([]string{"ask"}, append(baseArgs(t, "http://127.0.0.1:1", config.StoreJSON), "Hi")...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key found")
}

func TestChat_SendsEachLineWithHistory(t *testing.T) {
	t.Parallel()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\ndata: [DONE]\n\n", fmt.Sprintf("reply %d", len(bodies)))
	}))
	t.Cleanup(srv.Close)

	ta := newTestApp(t, strings.NewReader("first\n\nsecond\nexit\n"))
	require.NoError(t, ta.run(t, append([]string{"chat"}, baseArgs(t, srv.URL, config.StoreJSON)...)...))

	out := ta.out.String()
	assert.Contains(t, out, "reply 1")
	assert.Contains(t, out, "reply 2")
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], `"reply 1"`, "second request carries the first reply")
	assert.Contains(t, bodies[1], `"first"`)
}

func TestChat_InterruptWhileIdleExits(t *testing.T) {
	t.Parallel()
	srv := openAIServer(t, "unused")
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ta := newTestApp(t, pr)
	ta.interrupts = make(chan os.Signal, 1)
	ta.interrupts <- os.Interrupt

	errc := make(chan error, 1)
	go func() { errc <- ta.run(t, append([]string{"chat"}, baseArgs(t, srv.URL, config.StoreJSON)...)...) }()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not exit on interrupt")
	}
}

func TestHistoryFor(t *testing.T) {
	t.Parallel()
	msgs := []relay.Message{
		{ID: "1", Role: relay.RoleUser, Content: "q1"},
		{ID: "2", Role: relay.RoleAssistant, Content: "a1", Status: relay.StatusCompleted},
		{ID: "3", Role: relay.RoleUser, Content: "q2"},
		{ID: "4", Role: relay.RoleAssistant, Content: "half", Status: relay.StatusCancelled},
		{ID: "5", Role: relay.RoleUser, Content: "q3"},
		{ID: "6", Role: relay.RoleAssistant, Status: relay.StatusError, Error: "boom"},
		{ID: "7", Role: relay.RoleAssistant, Content: "lost", Status: relay.StatusLoading},
		{ID: "8", Role: relay.RoleUser, Content: "q4"},
	}
	var ids []string
	for _, m := range historyFor(msgs) {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "8"}, ids)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := openStore("postgres", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()
	_, err := newLogger(io.Discard, "loud")
	assert.Error(t, err)
}

func TestNewHTTPClient_TimeoutBoundsHeadersOnly(t *testing.T) {
	t.Parallel()

	t.Run("slow stream completes", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "data: one\n\n")
			w.(http.Flusher).Flush()
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, "data: two\n\n")
		}))
		t.Cleanup(srv.Close)

		resp, err := newHTTPClient(50 * time.Millisecond).Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "data: one\n\ndata: two\n\n", string(body))
	})

	t.Run("late headers fail", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		_, err := newHTTPClient(50 * time.Millisecond).Get(srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout awaiting response headers")
	})
}
