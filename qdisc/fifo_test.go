package qdisc

import (
	"testing"

	"github.com/mdlayher/netlink/nlenc"
)

type FifoParseTestCase struct {
	name      string
	kind      string
	cmdline   []string
	wantLimit uint32
	// No limit keyword means no TCA_OPTIONS attribute at all:
	wantFound bool
	wantErr   string
}

func testFifoParseOptions(tc *FifoParseTestCase, t *testing.T) {
	a := Lookup(tc.kind)
	if a == nil {
		t.Fatalf("no %q adapter", tc.kind)
	}
	data, found, err := parseOptions(a, tc.cmdline...)
	if tc.wantErr != "" {
		if err == nil || err.Error() != tc.wantErr {
			t.Fatalf("want error: %q, got: %v", tc.wantErr, err)
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if found != tc.wantFound {
		t.Fatalf("options attribute found: want: %v, got: %v", tc.wantFound, found)
	}
	if !found {
		return
	}
	if len(data) != TC_FIFO_QOPT_LEN {
		t.Fatalf("options payload size: want: %d, got: %d", TC_FIFO_QOPT_LEN, len(data))
	}
	if limit := nlenc.Uint32(data); limit != tc.wantLimit {
		t.Fatalf("limit: want: %d, got: %d", tc.wantLimit, limit)
	}
}

func TestFifoParseOptions(t *testing.T) {
	for _, tc := range []*FifoParseTestCase{
		{
			name:      "pfifo_limit",
			kind:      "pfifo",
			cmdline:   []string{"limit", "1000"},
			wantLimit: 1000,
			wantFound: true,
		},
		{
			name:      "pfifo_no_limit_no_options",
			kind:      "pfifo",
			cmdline:   nil,
			wantFound: false,
		},
		{
			name:    "pfifo_illegal_limit",
			kind:    "pfifo",
			cmdline: []string{"limit", "10k"},
			wantErr: `illegal "limit"`,
		},
		{
			name:    "pfifo_unknown_parameter",
			kind:    "pfifo",
			cmdline: []string{"bogus"},
			wantErr: `pfifo: unknown parameter "bogus"`,
		},
		{
			name:      "bfifo_plain_bytes",
			kind:      "bfifo",
			cmdline:   []string{"limit", "10000"},
			wantLimit: 10000,
			wantFound: true,
		},
		{
			name:      "bfifo_kb_suffix",
			kind:      "bfifo",
			cmdline:   []string{"limit", "32k"},
			wantLimit: 32 * 1024,
			wantFound: true,
		},
		{
			name:      "bfifo_mb_suffix",
			kind:      "bfifo",
			cmdline:   []string{"limit", "10m"},
			wantLimit: 10 * 1024 * 1024,
			wantFound: true,
		},
		{
			name:    "bfifo_limit_too_big",
			kind:    "bfifo",
			cmdline: []string{"limit", "5g"},
			wantErr: `illegal "limit"`,
		},
		{
			name:    "bfifo_missing_value",
			kind:    "bfifo",
			cmdline: []string{"limit"},
			wantErr: `command line is not complete, try option "help"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testFifoParseOptions(tc, t) })
	}
}

type FifoFormatTestCase struct {
	name    string
	kind    string
	data    []byte
	mode    int
	want    string
	wantErr bool
}

func testFifoFormatOptions(tc *FifoFormatTestCase, t *testing.T) {
	a := Lookup(tc.kind)
	if a == nil {
		t.Fatalf("no %q adapter", tc.kind)
	}
	p := NewPrinter(tc.mode)
	err := a.FormatOptions(p, tc.data)
	if tc.wantErr {
		if err == nil {
			t.Fatalf("want: error, got: %q", p.String())
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if got := p.String(); got != tc.want {
		t.Fatalf("want: %q, got: %q", tc.want, got)
	}
}

func TestFifoFormatOptions(t *testing.T) {
	qopt := func(limit uint32) []byte {
		data := make([]byte, TC_FIFO_QOPT_LEN)
		nlenc.PutUint32(data, limit)
		return data
	}

	for _, tc := range []*FifoFormatTestCase{
		{
			name: "pfifo_absent_options",
			kind: "pfifo",
			want: "",
		},
		{
			name: "pfifo_limit",
			kind: "pfifo",
			data: qopt(1000),
			want: "limit 1000p ",
		},
		{
			name: "bfifo_limit",
			kind: "bfifo",
			data: qopt(32768),
			want: "limit 32768b ",
		},
		{
			name: "bfifo_limit_json",
			kind: "bfifo",
			data: qopt(32768),
			mode: PRINT_JSON,
			want: `"limit":32768`,
		},
		{
			name:    "short_payload",
			kind:    "pfifo",
			data:    []byte{1, 2},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testFifoFormatOptions(tc, t) })
	}
}
