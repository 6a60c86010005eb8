package qdisc

import (
	"errors"
	"fmt"
	"strconv"
)

// Reported when a keyword's value ran out of tokens:
var ErrIncompleteCommand = errors.New(`command line is not complete, try option "help"`)

// Args walks a command line left to right. Adapters consume a keyword, then
// its value, and report missing values against the whole command rather than
// the keyword.
type Args struct {
	args []string
	pos  int
}

func NewArgs(args []string) *Args {
	return &Args{args: args}
}

func (a *Args) More() bool {
	return a.pos < len(a.args)
}

// The next token, "" when exhausted:
func (a *Args) Next() string {
	if a.pos >= len(a.args) {
		return ""
	}
	arg := a.args[a.pos]
	a.pos++
	return arg
}

// The next token without consuming it:
func (a *Args) Peek() string {
	if a.pos >= len(a.args) {
		return ""
	}
	return a.args[a.pos]
}

// The value token expected after a keyword:
func (a *Args) NextValue() (string, error) {
	if a.pos >= len(a.args) {
		return "", ErrIncompleteCommand
	}
	return a.Next(), nil
}

// The tokens not consumed yet:
func (a *Args) Rest() []string {
	return a.args[a.pos:]
}

// Numeric value parsers with base detection (0x... hex, 0... octal, decimal
// otherwise). Parse and range failures are blamed on the keyword the value
// belongs to, tc style:

func ParseU32(keyword, value string) (uint32, error) {
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("illegal %q", keyword)
	}
	return uint32(v), nil
}

func ParseU16(keyword, value string) (uint16, error) {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("illegal %q", keyword)
	}
	return uint16(v), nil
}
