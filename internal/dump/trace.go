package dump

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const maxFrames = 64

// skipPrefixes are frames that describe the capture machinery rather than the
// code that issued the call.
var skipPrefixes = []string{
	"runtime.",
	"github.com/tuncerburak97/gozcu/internal/dump.",
	"github.com/tuncerburak97/gozcu/internal/hook.(*Hook).",
	"github.com/tuncerburak97/gozcu/internal/transport.(*RoundTripper).",
	"github.com/tuncerburak97/gozcu/internal/transport.(*tap).",
}

// Callers returns the current goroutine's stack, innermost frame first.
// skip counts frames above the caller of Callers.
func Callers(skip int) []runtime.Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]runtime.Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

// Trace condenses frames (innermost first) into "pkg.Func (file.go:12)" entries,
// outermost caller first, joined by ", ".
func Trace(frames []runtime.Frame) string {
	parts := make([]string, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if skipFrame(f.Function) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s:%d)", shortFunc(f.Function), filepath.Base(f.File), f.Line))
	}
	return strings.Join(parts, ", ")
}

func skipFrame(function string) bool {
	if function == "" {
		return true
	}
	for _, p := range skipPrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// shortFunc drops the import path: "github.com/a/b/pkg.(*T).M" becomes "pkg.(*T).M".
func shortFunc(function string) string {
	if i := strings.LastIndex(function, "/"); i >= 0 {
		return function[i+1:]
	}
	return function
}
