package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	const prefix = "http://127.0.0.1:5000"

	tests := []struct {
		name   string
		prefix string
		method Method
		path   string
		params Params
		want   string
	}{
		{
			name:   "get with ordered params",
			prefix: prefix,
			method: MethodGet,
			path:   "datasets",
			params: Params{}.Add("current_page", 1).Add("page_size", 20).Add("search_word", ""),
			want:   prefix + "/datasets?current_page=1&page_size=20&search_word=",
		},
		{
			name:   "leading slashes collapse",
			prefix: prefix + "/",
			method: MethodGet,
			path:   "//datasets",
			want:   prefix + "/datasets",
		},
		{
			name:   "existing query uses ampersand",
			prefix: prefix,
			method: MethodGet,
			path:   "datasets?x=1",
			params: Params{}.Add("y", true),
			want:   prefix + "/datasets?x=1&y=true",
		},
		{
			name:   "values are component encoded",
			prefix: prefix,
			method: MethodGet,
			path:   "datasets",
			params: Params{}.Add("q", "a b&c=d/é").Add("f", 1.5),
			want:   prefix + "/datasets?q=a%20b%26c%3Dd%2F%C3%A9&f=1.5",
		},
		{
			name:   "post ignores params",
			prefix: prefix,
			method: MethodPost,
			path:   "/datasets",
			params: Params{}.Add("current_page", 1),
			want:   prefix + "/datasets",
		},
		{
			name:   "empty params add nothing",
			prefix: prefix,
			method: MethodGet,
			path:   "datasets",
			params: Params{},
			want:   prefix + "/datasets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURL(tt.prefix, tt.method, tt.path, tt.params))
		})
	}
}

func envelopeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteReturnsEnvelopeOnSuccess(t *testing.T) {
	srv := envelopeServer(t, http.StatusOK, `{"code":"success","data":{"id":"d1","name":"FAQ"},"message":""}`)
	d, n := newTestDispatcher(t, srv.URL, Options{})

	env, err := d.Execute(context.Background(), &RequestConfig{Path: "datasets/d1"})

	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, env.Code)
	assert.JSONEq(t, `{"id":"d1","name":"FAQ"}`, string(env.Data))
	assert.Empty(t, n.Messages())
}

func TestExecuteBusinessFailureNotifiesOnce(t *testing.T) {
	srv := envelopeServer(t, http.StatusOK, `{"code":"not_found","data":null,"message":"dataset missing"}`)
	d, n := newTestDispatcher(t, srv.URL, Options{})

	env, err := d.Execute(context.Background(), &RequestConfig{Path: "datasets/nope"})

	assert.Nil(t, env)
	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, CodeNotFound, be.Code)
	assert.Equal(t, "dataset missing", be.Message)
	assert.Equal(t, http.StatusOK, be.Status)
	assert.Equal(t, []string{"dataset missing"}, n.Messages())
}

func TestExecuteRejectsSuccessCodeWithErrorStatus(t *testing.T) {
	srv := envelopeServer(t, http.StatusInternalServerError, `{"code":"success","data":{},"message":""}`)
	d, n := newTestDispatcher(t, srv.URL, Options{})

	_, err := d.Execute(context.Background(), &RequestConfig{Path: "x"})

	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusInternalServerError, be.Status)
	// no message in the envelope: the status text is shown instead
	assert.Equal(t, []string{"Internal Server Error"}, n.Messages())
}

func TestExecuteUndecodableBody(t *testing.T) {
	srv := envelopeServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	d, n := newTestDispatcher(t, srv.URL, Options{})

	_, err := d.Execute(context.Background(), &RequestConfig{Path: "x"})

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"request failed"}, n.Messages())
}

func TestExecuteTransportFailure(t *testing.T) {
	boom := errors.New("connection refused")
	d, n := newTestDispatcher(t, "http://svc", Options{
		Transport: doerFunc(func(*http.Request) (*http.Response, error) { return nil, boom }),
	})

	_, err := d.Execute(context.Background(), &RequestConfig{Path: "x"})

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"request failed"}, n.Messages())
}

func TestExecuteTimesOut(t *testing.T) {
	const timeout = 100 * time.Millisecond

	released := make(chan struct{})
	d, n := newTestDispatcher(t, "http://svc", Options{
		Timeout: timeout,
		Transport: doerFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			close(released)
			return nil, req.Context().Err()
		}),
	})

	start := time.Now()
	_, err := d.Execute(context.Background(), &RequestConfig{Path: "slow"})
	elapsed := time.Since(start)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, timeout, te.After)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
	assert.Equal(t, []string{"request timed out"}, n.Messages())

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("transport call was not released after the timeout")
	}
}

func TestExecutePerRequestTimeoutOverridesDefault(t *testing.T) {
	d, _ := newTestDispatcher(t, "http://svc", Options{
		Timeout: time.Hour,
		Transport: doerFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	})

	_, err := d.Execute(context.Background(), &RequestConfig{Path: "slow", Timeout: 50 * time.Millisecond})

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 50*time.Millisecond, te.After)
}

func TestExecuteCallerCancelIsNotNotified(t *testing.T) {
	d, n := newTestDispatcher(t, "http://svc", Options{
		Transport: doerFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := d.Execute(ctx, &RequestConfig{Path: "slow"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.Messages())
}

func TestExecuteSendsHeadersBodyAndCredentials(t *testing.T) {
	type seen struct {
		method, path, query string
		contentType, auth  string
		requestID, cookie  string
		body               map[string]any
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			requestID:   r.Header.Get("X-Request-Id"),
		}
		if ck, err := r.Cookie("llmops_session"); err == nil {
			s.cookie = ck.Value
		}
		_ = json.NewDecoder(r.Body).Decode(&s.body)
		got <- s
		_, _ = io.WriteString(w, `{"code":"success","data":{},"message":""}`)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, srv.URL, Options{
		Credentials: Credentials{
			AccessToken:   "opaque-token",
			SessionCookie: &http.Cookie{Name: "llmops_session", Value: "s3cr3t"},
		},
	})

	_, err := d.Execute(context.Background(), &RequestConfig{
		Method: MethodPost,
		Path:   "/datasets",
		Params: Params{}.Add("ignored", 1),
		Body:   map[string]any{"name": "FAQ"},
	})
	require.NoError(t, err)

	s := <-got
	assert.Equal(t, http.MethodPost, s.method)
	assert.Equal(t, "/datasets", s.path)
	assert.Empty(t, s.query)
	assert.Equal(t, "application/json", s.contentType)
	assert.Equal(t, "Bearer opaque-token", s.auth)
	assert.Equal(t, "s3cr3t", s.cookie)
	assert.Equal(t, map[string]any{"name": "FAQ"}, s.body)
	_, err = uuid.Parse(s.requestID)
	assert.NoError(t, err)
}

func TestTypedExecuteDecodesPayload(t *testing.T) {
	srv := envelopeServer(t, http.StatusOK,
		`{"code":"success","data":{"list":[{"n":1},{"n":2}],"paginator":{"total_page":1,"total_record":2,"current_page":1,"page_size":20}},"message":"ok"}`)
	d, _ := newTestDispatcher(t, srv.URL, Options{})

	type item struct {
		N int `json:"n"`
	}
	env, err := Get[Page[item]](context.Background(), d, "datasets", Params{}.Add("current_page", 1))

	require.NoError(t, err)
	assert.Equal(t, "ok", env.Message)
	assert.Equal(t, []item{{N: 1}, {N: 2}}, env.Data.List)
	assert.Equal(t, 2, env.Data.Paginator.TotalRecord)
}

func TestTypedExecutePayloadMismatch(t *testing.T) {
	srv := envelopeServer(t, http.StatusOK, `{"code":"success","data":"not an object","message":""}`)
	d, n := newTestDispatcher(t, srv.URL, Options{})

	_, err := Post[map[string]int](context.Background(), d, "x", map[string]string{})

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"request failed"}, n.Messages())
}

func TestExecuteRecordsMetrics(t *testing.T) {
	ok := envelopeServer(t, http.StatusOK, `{"code":"success","data":{},"message":""}`)
	missing := envelopeServer(t, http.StatusOK, `{"code":"not_found","data":{},"message":"gone"}`)

	m := NewMetrics(nil)
	d1, _ := newTestDispatcher(t, ok.URL, Options{Metrics: m})
	d2, _ := newTestDispatcher(t, missing.URL, Options{Metrics: m})

	_, err := d1.Execute(context.Background(), &RequestConfig{Path: "a"})
	require.NoError(t, err)
	_, err = d1.Execute(context.Background(), &RequestConfig{Path: "b"})
	require.NoError(t, err)
	_, err = d2.Execute(context.Background(), &RequestConfig{Path: "c"})
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", outcomeBusiness)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestCredentialsValidate(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.ErrorIs(t, Credentials{AccessToken: sign(now.Add(-time.Minute))}.Validate(now), ErrTokenExpired)
	assert.NoError(t, Credentials{AccessToken: sign(now.Add(time.Hour))}.Validate(now))
	assert.NoError(t, Credentials{AccessToken: "opaque"}.Validate(now))
	assert.NoError(t, Credentials{}.Validate(now))

	exp, ok := Credentials{AccessToken: sign(now.Add(time.Hour))}.Expiry()
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(time.Hour), exp, time.Second)
}
