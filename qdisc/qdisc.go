// Discipline option adapters, a-la tc's qdisc_util table.

// Each adapter translates between command line tokens and its discipline's
// TCA_OPTIONS payload, and renders options and statistics payloads returned
// by the kernel. Adapters register themselves by kind at process start.

package qdisc

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mdlayher/netlink"
)

// Help sentinel: surfaces as a non-success result but the caller should
// print the adapter's usage text instead of the error:
var ErrHelp = errors.New("help requested")

type UnknownParamError struct {
	Kind  string
	Param string
}

func (e *UnknownParamError) Error() string {
	return fmt.Sprintf("%s: unknown parameter %q", e.Kind, e.Param)
}

type Adapter interface {
	// The discipline kind, as it appears in TCA_KIND:
	Kind() string

	// Usage text, written to the caller's error stream on help or unknown
	// parameter errors:
	Explain(w io.Writer)

	// Parse command line tokens and append the discipline's TCA_OPTIONS
	// attribute to ae. Nothing is appended on error:
	ParseOptions(args *Args, ae *netlink.AttributeEncoder) error

	// Render a TCA_OPTIONS payload. A nil payload means the dump carried
	// no options and renders nothing:
	FormatOptions(p *Printer, data []byte) error

	// Render the discipline specific xstats payload; nil renders nothing:
	FormatXStats(p *Printer, data []byte) error
}

var adapters = map[string]Adapter{}

// Invoked from init(); registering the same kind twice indicates a
// programming error:
func Register(a Adapter) {
	kind := a.Kind()
	if _, exists := adapters[kind]; exists {
		panic(fmt.Sprintf("qdisc adapter %q already registered", kind))
	}
	adapters[kind] = a
}

// The adapter for a kind, nil if none was registered:
func Lookup(kind string) Adapter {
	return adapters[kind]
}

func Kinds() []string {
	kinds := make([]string, 0, len(adapters))
	for kind := range adapters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
