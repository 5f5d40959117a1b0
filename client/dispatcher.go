package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPrefix  = "http://127.0.0.1:5000"
	DefaultTimeout = 100 * time.Second
)

type Options struct {
	Prefix      string        // service address prefix
	Timeout     time.Duration // default deadline
	Transport   Doer          // defaults to NewHTTPClient(Prefix, Credentials)
	Credentials Credentials
	Notifier    Notifier
	Logger      *zap.Logger
	Metrics     *Metrics
}

// Dispatcher issues single request/response exchanges against the
// service. It is safe for concurrent use.
type Dispatcher struct {
	prefix   string
	timeout  time.Duration
	doer     Doer
	creds    Credentials
	notifier Notifier
	logger   *zap.Logger
	metrics  *Metrics
}

func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Transport == nil {
		hc, err := NewHTTPClient(opts.Prefix, opts.Credentials)
		if err != nil {
			return nil, err
		}
		opts.Transport = hc
	}

	if err := opts.Credentials.Validate(time.Now()); err != nil {
		// the server has the final word; a stale token only earns a warning
		opts.Logger.Warn("[dispatch] access token", zap.Error(err))
	}

	return &Dispatcher{
		prefix:   strings.TrimRight(opts.Prefix, "/"),
		timeout:  opts.Timeout,
		doer:     opts.Transport,
		creds:    opts.Credentials,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// BuildURL joins prefix and path and, for GET, appends the encoded params.
func BuildURL(prefix string, method Method, path string, params Params) string {
	target := strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(path, "/")

	if method != MethodGet || len(params) == 0 {
		return target
	}

	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, p.Key+"="+encodeURIComponent(formatScalar(p.Value)))
	}

	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + strings.Join(pairs, "&")
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func (d *Dispatcher) newRequest(ctx context.Context, cfg *RequestConfig, method Method) (*http.Request, error) {
	var body io.Reader
	if cfg.Body != nil {
		raw, err := json.Marshal(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := BuildURL(d.prefix, method, cfg.Path, cfg.Params)
	req, err := http.NewRequestWithContext(ctx, string(method), target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	d.creds.apply(req)
	return req, nil
}

type exchangeResult struct {
	env *Envelope[json.RawMessage]
	err error
}

// Execute runs one exchange raced against the deadline. Every failure is
// reported once through the Notifier before it is returned.
func (d *Dispatcher) Execute(ctx context.Context, cfg *RequestConfig) (*Envelope[json.RawMessage], error) {
	method := cfg.Method
	if method == "" {
		method = MethodGet
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := d.newRequest(reqCtx, cfg, method)
	if err != nil {
		return nil, d.fail(req, &TransportError{Err: err})
	}
	reqID := req.Header.Get("X-Request-Id")

	start := time.Now()
	d.metrics.startRequest()

	resCh := make(chan exchangeResult, 1)
	go func() {
		env, err := d.roundTrip(req)
		resCh <- exchangeResult{env: env, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res exchangeResult
	select {
	case res = <-resCh:
	case <-timer.C:
		res.err = &TimeoutError{After: timeout}
	case <-ctx.Done():
		d.metrics.endRequest(method, outcomeCanceled, time.Since(start))
		d.logger.Debug("[dispatch] canceled by caller",
			zap.String("request_id", reqID), zap.String("url", req.URL.String()))
		return nil, ctx.Err()
	}
	elapsed := time.Since(start)

	if res.err != nil {
		d.metrics.endRequest(method, outcomeOf(res.err), elapsed)
		return nil, d.fail(req, res.err)
	}

	d.metrics.endRequest(method, outcomeOK, elapsed)
	d.logger.Debug("[dispatch] ok",
		zap.String("request_id", reqID),
		zap.String("method", string(method)),
		zap.String("url", req.URL.String()),
		zap.Duration("elapsed", elapsed),
	)
	return res.env, nil
}

// roundTrip performs the transport call and gates the decoded envelope on
// both the HTTP status and the business code.
func (d *Dispatcher) roundTrip(req *http.Request) (*Envelope[json.RawMessage], error) {
	resp, err := d.doer.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.Debug("[dispatch] close body", zap.Error(err))
		}
	}()

	var env Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("http %d: %w", resp.StatusCode, err)}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || env.Code != CodeSuccess {
		return nil, &BusinessError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return &env, nil
}

func (d *Dispatcher) fail(req *http.Request, err error) error {
	fields := []zap.Field{zap.Error(err)}
	if req != nil {
		fields = append(fields,
			zap.String("request_id", req.Header.Get("X-Request-Id")),
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
		)
	}
	d.logger.Warn("[dispatch] request failed", fields...)
	d.notifier.NotifyError(notification(err))
	return err
}

func outcomeOf(err error) string {
	var (
		te *TimeoutError
		be *BusinessError
		de *DecodeError
	)
	switch {
	case errors.As(err, &te):
		return outcomeTimeout
	case errors.As(err, &be):
		return outcomeBusiness
	case errors.As(err, &de):
		return outcomeDecode
	default:
		return outcomeTransport
	}
}

// Execute is the typed form of (*Dispatcher).Execute. The payload is
// decoded into T only once the envelope passed the success gate.
func Execute[T any](ctx context.Context, d *Dispatcher, cfg *RequestConfig) (*Envelope[T], error) {
	raw, err := d.Execute(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out := &Envelope[T]{Code: raw.Code, Message: raw.Message}
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
			return nil, d.fail(nil, &DecodeError{Err: fmt.Errorf("payload into %T: %w", out.Data, err)})
		}
	}
	return out, nil
}

func Get[T any](ctx context.Context, d *Dispatcher, path string, params Params) (*Envelope[T], error) {
	return Execute[T](ctx, d, &RequestConfig{Method: MethodGet, Path: path, Params: params})
}

func Post[T any](ctx context.Context, d *Dispatcher, path string, body any) (*Envelope[T], error) {
	return Execute[T](ctx, d, &RequestConfig{Method: MethodPost, Path: path, Body: body})
}
