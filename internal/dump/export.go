// Package dump renders runtime values and call stacks as readable text for log records.
package dump

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// Placeholder replaces any value that cannot be rendered.
	Placeholder = "<unserializable>"
	// Recursion marks a reference back to a value that is already being rendered.
	Recursion = "*RECURSION*"

	arrayOpen = "array ("
)

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	timeType  = reflect.TypeOf(time.Time{})
	rawType   = reflect.TypeOf(json.RawMessage{})
)

// Export renders v as a var_export style dump. Sequences, mappings and structs
// become `array (...)` blocks; mapping keys are sorted so equal values always
// render identically.
func Export(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = Placeholder
		}
	}()

	e := &exporter{visiting: make(map[visit]bool)}
	return e.render(reflect.ValueOf(v), 0)
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type exporter struct {
	visiting map[visit]bool
}

type entry struct {
	key   string
	value reflect.Value
}

func (e *exporter) render(v reflect.Value, depth int) string {
	if !v.IsValid() {
		return "NULL"
	}

	switch v.Type() {
	case timeType:
		return quote(v.Interface().(time.Time).Format(time.RFC3339Nano))
	case rawType:
		return quote(string(v.Bytes()))
	}

	if v.Kind() != reflect.Interface && v.Type().Implements(errorType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return "NULL"
		}
		if v.CanInterface() {
			return e.renderError(v.Interface().(error), depth)
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return "NULL"
		}
		return e.render(v.Elem(), depth)

	case reflect.Pointer:
		if v.IsNil() {
			return "NULL"
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if e.visiting[key] {
			return Recursion
		}
		e.visiting[key] = true
		defer delete(e.visiting, key)
		return e.render(v.Elem(), depth)

	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatFloat(v.Float())
	case reflect.Complex64, reflect.Complex128:
		return quote(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.String:
		return quote(v.String())

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return quote(string(v.Bytes()))
		}
		if v.Len() > 0 {
			key := visit{ptr: v.Pointer(), typ: v.Type()}
			if e.visiting[key] {
				return Recursion
			}
			e.visiting[key] = true
			defer delete(e.visiting, key)
		}
		return e.renderSequence(v, depth)

	case reflect.Array:
		return e.renderSequence(v, depth)

	case reflect.Map:
		if v.Len() > 0 {
			key := visit{ptr: v.Pointer(), typ: v.Type()}
			if e.visiting[key] {
				return Recursion
			}
			e.visiting[key] = true
			defer delete(e.visiting, key)
		}
		return e.renderMap(v, depth)

	case reflect.Struct:
		return e.renderStruct(v, depth)

	default:
		// chan, func, unsafe.Pointer
		return Placeholder
	}
}

func (e *exporter) renderError(err error, depth int) string {
	entries := []entry{
		{key: quote("type"), value: reflect.ValueOf(fmt.Sprintf("%T", err))},
		{key: quote("message"), value: reflect.ValueOf(err.Error())},
	}
	return e.renderEntries(entries, depth)
}

func (e *exporter) renderSequence(v reflect.Value, depth int) string {
	entries := make([]entry, v.Len())
	for i := range entries {
		entries[i] = entry{key: strconv.Itoa(i), value: v.Index(i)}
	}
	return e.renderEntries(entries, depth)
}

func (e *exporter) renderMap(v reflect.Value, depth int) string {
	keys := v.MapKeys()
	sortKeys(keys)

	entries := make([]entry, len(keys))
	for i, k := range keys {
		entries[i] = entry{key: renderKey(k), value: v.MapIndex(k)}
	}
	return e.renderEntries(entries, depth)
}

func (e *exporter) renderStruct(v reflect.Value, depth int) string {
	t := v.Type()
	entries := make([]entry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		entries = append(entries, entry{key: quote(name), value: v.Field(i)})
	}
	return e.renderEntries(entries, depth)
}

func (e *exporter) renderEntries(entries []entry, depth int) string {
	pad := strings.Repeat("  ", depth+1)

	var b strings.Builder
	b.WriteString(arrayOpen)
	b.WriteString("\n")
	for _, en := range entries {
		b.WriteString(pad)
		b.WriteString(en.key)
		b.WriteString(" => ")

		child := e.render(en.value, depth+1)
		if strings.HasPrefix(child, arrayOpen) {
			b.WriteString("\n")
			b.WriteString(pad)
		}
		b.WriteString(child)
		b.WriteString(",\n")
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(")")
	return b.String()
}

func sortKeys(keys []reflect.Value) {
	if len(keys) == 0 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	default:
		sort.SliceStable(keys, func(i, j int) bool { return keyString(keys[i]) < keyString(keys[j]) })
	}
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.Kind() == reflect.Interface && !k.IsNil() {
		return keyString(k.Elem())
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return ""
}

func renderKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	case reflect.Interface:
		if !k.IsNil() {
			return renderKey(k.Elem())
		}
	}
	return quote(keyString(k))
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
