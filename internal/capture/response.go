package capture

import (
	"net/http"

	"github.com/spf13/cast"
)

type codeProvider interface {
	ResponseCode() int
}

type bodyProvider interface {
	ResponseBody() string
}

// StatusCode extracts the HTTP status code from a response value. It understands
// values exposing ResponseCode, *http.Response, and map shaped responses
// ({"response": {"code": 200}} or {"status_code": 200}).
func StatusCode(result any) (code int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			code, ok = 0, false
		}
	}()

	switch v := result.(type) {
	case codeProvider:
		return v.ResponseCode(), true
	case *http.Response:
		if v == nil {
			return 0, false
		}
		return v.StatusCode, true
	case map[string]any:
		if inner, found := v["response"]; found {
			if m, isMap := inner.(map[string]any); isMap {
				if c, found := m["code"]; found {
					return toInt(c)
				}
			}
		}
		for _, key := range []string{"status_code", "code"} {
			if c, found := v[key]; found {
				return toInt(c)
			}
		}
	}
	return 0, false
}

// Body extracts the HTTP body from a response value. *http.Response bodies are
// streams that may already be consumed, so they are never read here.
func Body(result any) (body string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			body, ok = "", false
		}
	}()

	switch v := result.(type) {
	case bodyProvider:
		return v.ResponseBody(), true
	case map[string]any:
		if b, found := v["body"]; found {
			s, err := cast.ToStringE(b)
			if err != nil {
				return "", false
			}
			return s, true
		}
	}
	return "", false
}

func toInt(v any) (int, bool) {
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
