package capture

import (
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/tuncerburak97/gozcu/internal/dump"
	"github.com/tuncerburak97/gozcu/internal/model"
)

// Recorder turns one completed call into a log record. It has no side effects.
type Recorder struct {
	dump  dump.Func
	now   func() time.Time
	newID func() string
}

type Option func(*Recorder)

// WithDumper replaces the value renderer (dump.Export by default).
func WithDumper(fn dump.Func) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.dump = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Recorder) {
		r.newID = newID
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		dump:  dump.Export,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build captures result (a response value or an error), the parsed request args,
// the target url and the stack that issued the call. responseCode and
// responseBody are only present for successful calls whose response exposes them.
func (r *Recorder) Build(result any, args map[string]any, url string, stack []runtime.Frame) *model.Record {
	status := !IsFailure(result)

	fields := map[string]string{
		model.FieldRequestArgs: r.serialize(args),
		model.FieldResponse:    r.serialize(result),
		model.FieldDebugTrace:  dump.Trace(stack),
	}
	if status {
		if code, ok := StatusCode(result); ok {
			fields[model.FieldResponseCode] = r.serialize(code)
		}
		if body, ok := Body(result); ok {
			fields[model.FieldResponseBody] = r.serialize(body)
		}
	}

	return &model.Record{
		ID:        r.newID(),
		Title:     model.Title(url, status),
		Status:    status,
		URL:       url,
		CreatedAt: r.now().UTC(),
		Fields:    fields,
	}
}

func (r *Recorder) serialize(v any) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			out = dump.Placeholder
		}
	}()
	return r.dump(v)
}

// IsFailure reports whether result is an error value rather than a response.
func IsFailure(result any) bool {
	_, ok := result.(error)
	return ok
}
