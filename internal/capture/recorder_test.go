package capture

import (
	"errors"
	"net/http"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/dump"
	"github.com/tuncerburak97/gozcu/internal/model"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRecorder(opts ...Option) *Recorder {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "rec-1" }),
	}
	return NewRecorder(append(base, opts...)...)
}

func TestBuild_SuccessRecord(t *testing.T) {
	r := newTestRecorder()
	resp := model.Response{StatusCode: 200, Message: "OK", Body: "ok"}
	args := map[string]any{"method": "GET"}
	stack := []runtime.Frame{{Function: "main.main", File: "/app/main.go", Line: 3}}

	rec := r.Build(resp, args, "https://license.example.com/check", stack)

	require.NotNil(t, rec)
	assert.Equal(t, "rec-1", rec.ID)
	assert.True(t, rec.Status)
	assert.Equal(t, "https://license.example.com/check - Success", rec.Title)
	assert.Equal(t, "https://license.example.com/check", rec.URL)
	assert.Equal(t, fixedNow, rec.CreatedAt)

	assert.Equal(t, "200", rec.Fields[model.FieldResponseCode])
	assert.Equal(t, "'ok'", rec.Fields[model.FieldResponseBody])
	assert.Equal(t, "array (\n  'method' => 'GET',\n)", rec.Fields[model.FieldRequestArgs])
	assert.Contains(t, rec.Fields[model.FieldResponse], "'code' => 200")
	assert.Contains(t, rec.Fields[model.FieldResponse], "'body' => 'ok'")
	assert.Equal(t, "main.main (main.go:3)", rec.Fields[model.FieldDebugTrace])
}

func TestBuild_FailureRecordHasNoCodeOrBody(t *testing.T) {
	r := newTestRecorder()
	rec := r.Build(errors.New("dial tcp: connection refused"), map[string]any{}, "https://license.example.com", nil)

	assert.False(t, rec.Status)
	assert.Equal(t, "https://license.example.com - Failure", rec.Title)

	_, hasCode := rec.Fields[model.FieldResponseCode]
	_, hasBody := rec.Fields[model.FieldResponseBody]
	assert.False(t, hasCode)
	assert.False(t, hasBody)
	assert.Contains(t, rec.Fields[model.FieldResponse], "connection refused")
	assert.Contains(t, rec.Fields, model.FieldRequestArgs)
	assert.Contains(t, rec.Fields, model.FieldDebugTrace)
}

func TestBuild_ResponseWithoutAccessorsOmitsFields(t *testing.T) {
	r := newTestRecorder()
	rec := r.Build("plain string", nil, "https://x", nil)

	assert.True(t, rec.Status)
	assert.NotContains(t, rec.Fields, model.FieldResponseCode)
	assert.NotContains(t, rec.Fields, model.FieldResponseBody)
	assert.Equal(t, "'plain string'", rec.Fields[model.FieldResponse])
}

func TestBuild_MapShapedResponse(t *testing.T) {
	r := newTestRecorder()
	resp := map[string]any{
		"response": map[string]any{"code": "201", "message": "Created"},
		"body":     `{"valid":true}`,
	}
	rec := r.Build(resp, nil, "https://x", nil)

	assert.Equal(t, "201", rec.Fields[model.FieldResponseCode])
	assert.Equal(t, `'{"valid":true}'`, rec.Fields[model.FieldResponseBody])
}

func TestBuild_MalformedMapResponseDegrades(t *testing.T) {
	r := newTestRecorder()
	resp := map[string]any{
		"response": map[string]any{"code": []int{1}},
		"body":     func() {},
	}
	rec := r.Build(resp, nil, "https://x", nil)

	assert.True(t, rec.Status)
	assert.NotContains(t, rec.Fields, model.FieldResponseCode)
	assert.NotContains(t, rec.Fields, model.FieldResponseBody)
	assert.Contains(t, rec.Fields[model.FieldResponse], dump.Placeholder)
}

func TestBuild_HTTPResponseHasCodeButNoBody(t *testing.T) {
	r := newTestRecorder()
	rec := r.Build(&http.Response{StatusCode: 404}, nil, "https://x", nil)

	assert.Equal(t, "404", rec.Fields[model.FieldResponseCode])
	assert.NotContains(t, rec.Fields, model.FieldResponseBody)
}

func TestBuild_PanickingDumperUsesPlaceholder(t *testing.T) {
	r := newTestRecorder(WithDumper(func(any) string { panic("nope") }))
	rec := r.Build(model.Response{StatusCode: 200}, nil, "https://x", nil)

	assert.Equal(t, dump.Placeholder, rec.Fields[model.FieldRequestArgs])
	assert.Equal(t, dump.Placeholder, rec.Fields[model.FieldResponse])
	assert.Equal(t, dump.Placeholder, rec.Fields[model.FieldResponseCode])
}

func TestBuild_DefaultIDsAreUnique(t *testing.T) {
	r := NewRecorder()
	a := r.Build(nil, nil, "https://x", nil)
	b := r.Build(nil, nil, "https://x", nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.ID)
}

type nilSafe struct{}

func (*nilSafe) ResponseCode() int { panic("nil receiver") }

func TestStatusCode_RecoversFromPanickingAccessor(t *testing.T) {
	code, ok := StatusCode((*nilSafe)(nil))
	assert.False(t, ok)
	assert.Zero(t, code)
}

func TestIsFailure(t *testing.T) {
	assert.True(t, IsFailure(errors.New("x")))
	assert.False(t, IsFailure(model.Response{}))
	assert.False(t, IsFailure(nil))
}
