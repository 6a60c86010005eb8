package qdisc

import (
	"bytes"
	"fmt"
	"strconv"
)

// Printer output modes:
const (
	PRINT_TEXT = iota
	PRINT_JSON
)

// Printer is a dual mode output sink, in the spirit of tc's json_print:
// every value carries a key, used in structured mode, plus a format and the
// value proper, used in text mode. Text mode appends formatted text as-is;
// structured mode collects the key/value pairs in call order, with the
// caller providing object and array containers.
type Printer struct {
	mode int
	buf  bytes.Buffer

	// Comma bookkeeping, one entry per open JSON container plus one for the
	// top level:
	needComma []bool
}

func NewPrinter(mode int) *Printer {
	return &Printer{
		mode:      mode,
		needComma: make([]bool, 1, 8),
	}
}

func (p *Printer) Mode() int {
	return p.mode
}

func (p *Printer) String() string {
	return p.buf.String()
}

func (p *Printer) Bytes() []byte {
	return p.buf.Bytes()
}

func (p *Printer) Len() int {
	return p.buf.Len()
}

func (p *Printer) Reset() {
	p.buf.Reset()
	p.needComma = p.needComma[:1]
	p.needComma[0] = false
}

// jsonKey writes the separating comma and, unless key is empty (array
// members), the quoted key:
func (p *Printer) jsonKey(key string) {
	last := len(p.needComma) - 1
	if p.needComma[last] {
		p.buf.WriteByte(',')
	}
	p.needComma[last] = true
	if key != "" {
		p.buf.WriteByte('"')
		p.buf.WriteString(key)
		p.buf.WriteString(`":`)
	}
}

func (p *Printer) Uint(key, format string, val uint64) {
	if p.mode == PRINT_JSON {
		p.jsonKey(key)
		p.buf.WriteString(strconv.FormatUint(val, 10))
	} else {
		fmt.Fprintf(&p.buf, format, val)
	}
}

func (p *Printer) Float(key, format string, val float64) {
	if p.mode == PRINT_JSON {
		p.jsonKey(key)
		p.buf.WriteString(strconv.FormatFloat(val, 'f', 3, 64))
	} else {
		fmt.Fprintf(&p.buf, format, val)
	}
}

func (p *Printer) Str(key, format string, val string) {
	if p.mode == PRINT_JSON {
		p.jsonKey(key)
		p.buf.WriteString(strconv.Quote(val))
	} else {
		fmt.Fprintf(&p.buf, format, val)
	}
}

// Text writes literal text, text mode only:
func (p *Printer) Text(s string) {
	if p.mode == PRINT_TEXT {
		p.buf.WriteString(s)
	}
}

// Object and array containers; no-ops in text mode. Pass an empty key for
// containers nested directly inside an array:

func (p *Printer) OpenObject(key string) {
	if p.mode != PRINT_JSON {
		return
	}
	p.jsonKey(key)
	p.buf.WriteByte('{')
	p.needComma = append(p.needComma, false)
}

func (p *Printer) CloseObject() {
	if p.mode != PRINT_JSON {
		return
	}
	p.buf.WriteByte('}')
	p.needComma = p.needComma[:len(p.needComma)-1]
}

func (p *Printer) OpenArray(key string) {
	if p.mode != PRINT_JSON {
		return
	}
	p.jsonKey(key)
	p.buf.WriteByte('[')
	p.needComma = append(p.needComma, false)
}

func (p *Printer) CloseArray() {
	if p.mode != PRINT_JSON {
		return
	}
	p.buf.WriteByte(']')
	p.needComma = p.needComma[:len(p.needComma)-1]
}
