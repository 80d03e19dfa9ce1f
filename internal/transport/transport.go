// Package transport wraps an http.RoundTripper and reports every completed
// call to registered observers. A call completes when its response body has
// been read to the end or closed, so the caller is never held back.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/model"
)

const (
	// CallContext is the context string handed to observers.
	CallContext = "response"

	DefaultMaxBodyBytes = 1 << 20

	redacted  = "[REDACTED]"
	truncated = "...[truncated]"
)

// Observer receives one completed call. result is a model.Response or a *CallError.
type Observer func(ctx context.Context, result any, callContext, transportClass string, args map[string]any, url string)

// CallError is the result handed to observers when the call failed.
type CallError struct {
	Method string
	URL    string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

type RoundTripper struct {
	base      http.RoundTripper
	class     string
	maxBody   int64
	redact    map[string]struct{}
	mu        sync.RWMutex
	observers []Observer
}

type Option func(*RoundTripper)

// WithMaxBodyBytes bounds how much of each body is captured. Larger bodies
// still reach the caller in full.
func WithMaxBodyBytes(n int64) Option {
	return func(rt *RoundTripper) {
		if n > 0 {
			rt.maxBody = n
		}
	}
}

// WithRedactHeaders masks the named headers in captured copies.
func WithRedactHeaders(names []string) Option {
	return func(rt *RoundTripper) {
		rt.redact = make(map[string]struct{}, len(names))
		for _, name := range names {
			rt.redact[http.CanonicalHeaderKey(name)] = struct{}{}
		}
	}
}

func WithObserver(o Observer) Option {
	return func(rt *RoundTripper) {
		rt.observers = append(rt.observers, o)
	}
}

func New(base http.RoundTripper, opts ...Option) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := &RoundTripper{
		base:    base,
		class:   fmt.Sprintf("%T", base),
		maxBody: DefaultMaxBodyBytes,
	}
	WithRedactHeaders(nil)(rt)
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Observe registers o for every call completed after it returns.
func (rt *RoundTripper) Observe(o Observer) {
	if o == nil {
		return
	}
	rt.mu.Lock()
	rt.observers = append(rt.observers, o)
	rt.mu.Unlock()
}

// Client returns an http.Client using rt.
func (rt *RoundTripper) Client() *http.Client {
	return &http.Client{Transport: rt}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := context.WithoutCancel(req.Context())
	target := req.URL.String()
	args := rt.requestArgs(req)

	sent := &capture{limit: rt.maxBody}
	out := req
	if req.Body != nil && req.Body != http.NoBody {
		out = req.Clone(req.Context())
		out.Body = &tap{rc: req.Body, sink: sent}
		if req.GetBody != nil {
			out.GetBody = func() (io.ReadCloser, error) {
				rc, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				sent.reset()
				return &tap{rc: rc, sink: sent}, nil
			}
		}
	}
	withBody := func() map[string]any {
		if b, cut := sent.snapshot(); len(b) > 0 {
			args["body"] = rt.bodyText(b, cut, req.Header.Get("Content-Encoding"), target)
		}
		return args
	}

	resp, err := rt.base.RoundTrip(out)
	if err != nil {
		rt.notify(ctx, &CallError{Method: req.Method, URL: target, Err: err}, withBody(), target)
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		rt.notify(ctx, rt.response(resp, nil, false, target), withBody(), target)
		return resp, nil
	}

	// The call is reported once the caller has consumed or closed the body.
	received := &capture{limit: rt.maxBody}
	resp.Body = &tap{rc: resp.Body, sink: received, done: func(readErr error) {
		if readErr != nil {
			rt.notify(ctx, &CallError{Method: req.Method, URL: target, Err: readErr}, withBody(), target)
			return
		}
		b, cut := received.snapshot()
		rt.notify(ctx, rt.response(resp, b, cut, target), withBody(), target)
	}}
	return resp, nil
}

func (rt *RoundTripper) notify(ctx context.Context, result any, args map[string]any, target string) {
	rt.mu.RLock()
	observers := append([]Observer(nil), rt.observers...)
	rt.mu.RUnlock()

	for _, o := range observers {
		rt.call(ctx, o, result, args, target)
	}
}

func (rt *RoundTripper) call(ctx context.Context, o Observer, result any, args map[string]any, target string) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn().
				Str("url", target).
				Str("panic", fmt.Sprint(p)).
				Msg("Call observer panicked")
		}
	}()
	o(ctx, result, CallContext, rt.class, args, target)
}

func (rt *RoundTripper) requestArgs(req *http.Request) map[string]any {
	args := map[string]any{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": rt.headers(req.Header),
	}
	if deadline, ok := req.Context().Deadline(); ok {
		args["timeout"] = time.Until(deadline).Seconds()
	}
	return args
}

func (rt *RoundTripper) response(resp *http.Response, body []byte, cut bool, target string) model.Response {
	var cookies []string
	for _, c := range resp.Cookies() {
		cookies = append(cookies, c.Name)
	}
	sort.Strings(cookies)

	header := resp.Header.Clone()
	for name := range header {
		if rt.redacted(name) {
			header[name] = []string{redacted}
		}
	}

	return model.Response{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		Headers:    header,
		Body:       rt.bodyText(body, cut, resp.Header.Get("Content-Encoding"), target),
		Cookies:    cookies,
	}
}

// headers flattens h into a map, joining repeated values with ", ".
func (rt *RoundTripper) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if rt.redacted(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func (rt *RoundTripper) redacted(name string) bool {
	_, ok := rt.redact[http.CanonicalHeaderKey(name)]
	return ok
}

// bodyText decodes the captured bytes and marks a cut copy.
func (rt *RoundTripper) bodyText(b []byte, cut bool, encoding, target string) string {
	text, err := decodeBody(b, encoding, rt.maxBody)
	if err != nil {
		log.Debug().Err(err).Str("url", target).Msg("Captured body left encoded")
	}
	if cut {
		return string(text) + truncated
	}
	return string(text)
}

// capture keeps the first limit bytes written to it.
type capture struct {
	mu    sync.Mutex
	limit int64
	buf   []byte
	cut   bool
}

func (c *capture) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := c.limit - int64(len(c.buf)); int64(len(p)) > room {
		c.cut = true
		p = p[:room]
	}
	c.buf = append(c.buf, p...)
}

func (c *capture) reset() {
	c.mu.Lock()
	c.buf, c.cut = nil, false
	c.mu.Unlock()
}

func (c *capture) snapshot() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...), c.cut
}

// tap copies what the consumer reads from rc into sink. done, when set, runs
// once when rc ends, fails or is closed.
type tap struct {
	rc   io.ReadCloser
	sink *capture
	done func(error)
	once sync.Once
}

func (t *tap) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if n > 0 {
		t.sink.write(p[:n])
	}
	switch {
	case err == io.EOF:
		t.finish(nil)
	case err != nil:
		t.finish(err)
	}
	return n, err
}

func (t *tap) Close() error {
	err := t.rc.Close()
	t.finish(nil)
	return err
}

func (t *tap) finish(err error) {
	if t.done != nil {
		t.once.Do(func() { t.done(err) })
	}
}
