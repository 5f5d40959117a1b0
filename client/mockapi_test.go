package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"go-llmops/client"
	"go-llmops/mockapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startMock(t *testing.T, chunkSize int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(mockapi.New(mockapi.Options{ChunkSize: chunkSize}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func mockDispatcher(t *testing.T, prefix string) (*client.Dispatcher, *[]string) {
	t.Helper()

	var (
		mu       sync.Mutex
		messages []string
	)
	d, err := client.NewDispatcher(client.Options{
		Prefix:  prefix,
		Timeout: 5 * time.Second,
		Notifier: client.NotifierFunc(func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, msg)
		}),
	})
	require.NoError(t, err)
	return d, &messages
}

func TestDatasetsRoundTrip(t *testing.T) {
	srv := startMock(t, 0)
	d, notes := mockDispatcher(t, srv.URL)
	ctx := context.Background()

	page, err := client.Get[client.Page[mockapi.Dataset]](ctx, d, "datasets",
		client.Params{}.Add("current_page", 1).Add("page_size", 2).Add("search_word", ""))
	require.NoError(t, err)
	assert.Len(t, page.Data.List, 2)
	assert.Equal(t, 5, page.Data.Paginator.TotalRecord)
	assert.Equal(t, 3, page.Data.Paginator.TotalPage)

	created, err := client.Post[mockapi.Dataset](ctx, d, "datasets", map[string]string{"name": "Onboarding"})
	require.NoError(t, err)
	require.NotEmpty(t, created.Data.ID)

	got, err := client.Get[mockapi.Dataset](ctx, d, "datasets/"+created.Data.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", got.Data.Name)

	_, err = client.Post[map[string]any](ctx, d, "datasets/"+created.Data.ID+"/delete", nil)
	require.NoError(t, err)

	_, err = client.Get[mockapi.Dataset](ctx, d, "datasets/"+created.Data.ID, nil)
	var be *client.BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, client.CodeNotFound, be.Code)
	assert.Equal(t, []string{"dataset missing"}, *notes)
}

func TestDebugStreamReassemblesAnswer(t *testing.T) {
	for _, size := range []int{1, 3, 7, 4096} {
		srv := startMock(t, size)
		d, notes := mockDispatcher(t, srv.URL)

		var (
			kinds  []string
			answer strings.Builder
		)
		err := d.StreamPost(context.Background(), "apps/app-1/debug", map[string]string{"query": "hi"},
			func(ev client.StreamEvent) {
				kinds = append(kinds, ev.Event)
				var p mockapi.AgentEvent
				require.NoError(t, ev.Decode(&p))
				answer.WriteString(p.Answer)
			})

		require.NoError(t, err, "chunk size %d", size)
		require.NotEmpty(t, kinds)
		assert.Equal(t, mockapi.EventAgentThought, kinds[0], "chunk size %d", size)
		assert.Equal(t, mockapi.EventAgentEnd, kinds[len(kinds)-1], "chunk size %d", size)
		assert.Equal(t, mockapi.Answer("hi"), answer.String(), "chunk size %d", size)
		assert.Empty(t, *notes)
	}
}

func TestStreamOpenFailures(t *testing.T) {
	srv := startMock(t, 0)
	d, notes := mockDispatcher(t, srv.URL)

	_, err := d.Stream(context.Background(), &client.RequestConfig{Path: "apps/a/debug", Body: map[string]string{}})
	var soe *client.StreamOpenError
	require.True(t, errors.As(err, &soe))
	assert.Equal(t, http.StatusBadRequest, soe.Status)

	dead, _ := mockDispatcher(t, "http://127.0.0.1:1")
	_, err = dead.Stream(context.Background(), &client.RequestConfig{Path: "apps/a/debug", Body: map[string]string{"query": "x"}})
	require.True(t, errors.As(err, &soe))
	assert.Zero(t, soe.Status)

	// stream failures go to the caller, never to the notifier
	assert.Empty(t, *notes)
}

func TestConcurrentStreamsAreIndependent(t *testing.T) {
	srv := startMock(t, 5)
	d, _ := mockDispatcher(t, srv.URL)

	queries := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	answers := make([]string, len(queries))

	g, ctx := errgroup.WithContext(context.Background())
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			var sb strings.Builder
			err := d.StreamPost(ctx, "apps/app-1/debug", map[string]string{"query": q}, func(ev client.StreamEvent) {
				var p mockapi.AgentEvent
				if ev.Decode(&p) == nil {
					sb.WriteString(p.Answer)
				}
			})
			answers[i] = sb.String()
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, q := range queries {
		assert.Equal(t, mockapi.Answer(q), answers[i])
	}
}
