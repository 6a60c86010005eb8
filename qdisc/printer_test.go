package qdisc

import (
	"encoding/json"
	"testing"
)

func TestPrinterText(t *testing.T) {
	p := NewPrinter(PRINT_TEXT)

	// Containers are no-ops in text mode:
	p.OpenObject("")
	p.Str("kind", "qdisc %s ", "aifo_stfq")
	p.OpenObject("options")
	p.Uint("limit", "limit %dp ", 100)
	p.Uint("flags", "flags 0x%X ", 0x120)
	p.Float("quant_avg", " quant_avg %.3f", 523.0/1024)
	p.CloseObject()
	p.Text("\n")
	p.CloseObject()

	want := "qdisc aifo_stfq limit 100p flags 0x120  quant_avg 0.511\n"
	if got := p.String(); got != want {
		t.Fatalf("want: %q, got: %q", want, got)
	}
}

func TestPrinterJson(t *testing.T) {
	p := NewPrinter(PRINT_JSON)

	p.OpenArray("")
	p.OpenObject("")
	p.Str("kind", "qdisc %s ", "aifo_stfq")
	p.Uint("handle", "%d:", 0x8001)
	p.OpenObject("options")
	p.Uint("limit", "limit %dp ", 100)
	p.Float("quant_avg", " quant_avg %.3f", 523.0/1024)
	p.CloseObject()
	// Literal text is structured mode invisible:
	p.Text("\n")
	p.CloseObject()
	p.OpenObject("")
	p.Str("kind", "qdisc %s ", "pfifo")
	p.CloseObject()
	p.CloseArray()

	want := `[{"kind":"aifo_stfq","handle":32769,"options":{"limit":100,"quant_avg":0.511}},{"kind":"pfifo"}]`
	got := p.String()
	if got != want {
		t.Fatalf("want: %q, got: %q", want, got)
	}
	if !json.Valid(p.Bytes()) {
		t.Fatalf("invalid json: %q", got)
	}
}

func TestPrinterReset(t *testing.T) {
	p := NewPrinter(PRINT_JSON)
	p.OpenObject("")
	p.Uint("limit", "limit %dp ", 100)
	p.Reset()

	p.Uint("burst", "burst %d ", 64)
	want := `"burst":64`
	if got := p.String(); got != want {
		t.Fatalf("want: %q, got: %q", want, got)
	}
}
