package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/model"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 100 * time.Millisecond

type rule struct {
	match   string
	path    string
	program *goja.Program
}

// Engine runs scrubbing scripts over records before they are stored. Each
// script sees a global `record` with title, url, status and fields; whatever
// it leaves in record.fields becomes the stored field set.
type Engine struct {
	rules   []rule
	timeout time.Duration
}

// NewEngine compiles every configured rule script.
func NewEngine(cfg config.TransformConfig) (*Engine, error) {
	engine := &Engine{timeout: DefaultTimeout}

	for _, r := range cfg.Rules {
		path := r.Script
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.ScriptsDir, path)
		}
		program, err := compileScript(path)
		if err != nil {
			return nil, fmt.Errorf("failed to compile scrub script %s: %v", path, err)
		}
		engine.rules = append(engine.rules, rule{match: r.Match, path: path, program: program})
	}
	return engine, nil
}

// compileScript compiles a JavaScript file into a program
func compileScript(path string) (*goja.Program, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return goja.Compile(path, string(content), true)
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply runs every rule whose match is a substring of rec.URL. A failing
// script leaves the fields as they were before it ran; its error is returned
// after the remaining rules have been applied.
func (e *Engine) Apply(rec *model.Record) error {
	if e == nil || rec == nil {
		return nil
	}

	var firstErr error
	for _, r := range e.rules {
		if r.match != "" && !strings.Contains(rec.URL, r.match) {
			continue
		}
		fields, err := e.run(r, rec)
		if err != nil {
			log.Warn().Err(err).Str("script", r.path).Str("url", rec.URL).Msg("Scrub script failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rec.Fields = fields
	}
	return firstErr
}

func (e *Engine) run(r rule, rec *model.Record) (fields map[string]string, err error) {
	vm := goja.New()
	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt("scrub script timed out")
	})
	defer timer.Stop()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scrub script panicked: %v", p)
		}
	}()

	in := make(map[string]interface{}, len(rec.Fields))
	for name, value := range rec.Fields {
		in[name] = value
	}
	obj := vm.NewObject()
	_ = obj.Set("title", rec.Title)
	_ = obj.Set("url", rec.URL)
	_ = obj.Set("status", rec.Status)
	_ = obj.Set("fields", in)

	_ = vm.Set("record", obj)
	_ = vm.Set("log", func(msg string) {
		log.Debug().Str("script", r.path).Msg(msg)
	})

	if _, err := vm.RunProgram(r.program); err != nil {
		return nil, err
	}

	exported := vm.Get("record").ToObject(vm).Get("fields")
	if exported == nil || goja.IsUndefined(exported) || goja.IsNull(exported) {
		return map[string]string{}, nil
	}
	raw, ok := exported.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("record.fields must be an object, got %T", exported.Export())
	}

	fields = make(map[string]string, len(raw))
	for name, value := range raw {
		s, err := cast.ToStringE(value)
		if err != nil {
			continue
		}
		fields[name] = s
	}
	return fields, nil
}
