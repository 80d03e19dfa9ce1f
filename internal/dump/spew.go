package dump

import (
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          false,
}

// Spew renders v with go-spew, which annotates every value with its Go type.
func Spew(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = Placeholder
		}
	}()
	return strings.TrimRight(spewConfig.Sdump(v), "\n")
}

// Func renders one value as text.
type Func func(v any) string

const (
	FormatExport = "export"
	FormatSpew   = "spew"
)

// ForFormat returns the renderer configured by name; unknown names get Export.
func ForFormat(name string) Func {
	if strings.EqualFold(name, FormatSpew) {
		return Spew
	}
	return Export
}
