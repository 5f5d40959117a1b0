package client

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingNotifier keeps every message it was handed.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyError(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func newTestDispatcher(t *testing.T, prefix string, opts Options) (*Dispatcher, *recordingNotifier) {
	t.Helper()

	n := &recordingNotifier{}
	opts.Prefix = prefix
	opts.Notifier = n
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	d, err := NewDispatcher(opts)
	require.NoError(t, err)
	return d, n
}

// pipeSource returns a stream source fed chunk by chunk from a goroutine,
// like a transport delivering packets. The writer closes the pipe when
// all chunks are written.
func pipeSource(t *testing.T, chunks ...string) io.ReadCloser {
	t.Helper()

	r, w := io.Pipe()
	go func() {
		for _, c := range chunks {
			if _, err := w.Write([]byte(c)); err != nil {
				return
			}
		}
		_ = w.Close()
	}()
	return r
}

// splitEvery cuts s into pieces of at most n bytes, ignoring rune
// boundaries on purpose.
func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func feedAll(t *testing.T, p *Parser, chunks ...string) []StreamEvent {
	t.Helper()

	var events []StreamEvent
	for _, c := range chunks {
		evs, err := p.Feed([]byte(c))
		require.NoError(t, err)
		events = append(events, evs...)
	}
	return events
}
