package qdisc

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

var aifoStfqTestAdapter = &AifoStfqAdapter{}

type AifoParseTestCase struct {
	name    string
	cmdline []string
	// Expected TCA_OPTIONS content, built w/ the reference encoder; nil
	// stands for an options attribute w/ an empty payload:
	wantOpts func(ae *netlink.AttributeEncoder)
	wantErr  string
}

func testAifoStfqParseOptions(tc *AifoParseTestCase, t *testing.T) {
	got, found, err := parseOptions(aifoStfqTestAdapter, tc.cmdline...)
	if tc.wantErr != "" {
		if err == nil || err.Error() != tc.wantErr {
			t.Fatalf("want error: %q, got: %v", tc.wantErr, err)
		}
		if found {
			t.Fatal("options attribute emitted despite the error")
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("no options attribute emitted")
	}
	wantAe := netlink.NewAttributeEncoder()
	if tc.wantOpts != nil {
		tc.wantOpts(wantAe)
	}
	want, err := wantAe.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("options payload:\n\twant: %v\n\t got: %v", want, got)
	}
}

func TestAifoStfqParseOptions(t *testing.T) {
	for _, tc := range []*AifoParseTestCase{
		{
			name:    "single_limit",
			cmdline: []string{"limit", "100"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_PLIMIT, 100)
			},
		},
		{
			name:     "no_parameters",
			cmdline:  nil,
			wantOpts: nil,
		},
		{
			name: "all_parameters",
			cmdline: []string{
				"limit", "1000", "burst", "64", "buckets", "1024",
				"hash_mask", "0xff", "flow_limit", "100",
				"samples", "64", "speriod", "512", "flags", "0x120",
			},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_PLIMIT, 1000)
				ae.Uint32(TCA_AIFO_BURST, 64)
				ae.Uint32(TCA_AIFO_BUCKETS_LOG, 10)
				ae.Uint32(TCA_AIFO_HASH_MASK, 0xff)
				ae.Uint32(TCA_AIFO_FLOW_PLIMIT, 100)
				ae.Uint16(TCA_AIFO_SAMPLE_SIZE, 64)
				ae.Uint16(TCA_AIFO_SAMPLE_PERIOD, 512)
				ae.Uint32(TCA_AIFO_FLAGS, 0x120)
			},
		},
		{
			// Attributes go out in a fixed order, no matter how the
			// command line was scrambled:
			name:    "fixed_emission_order",
			cmdline: []string{"flags", "0x20", "samples", "64", "limit", "1000"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_PLIMIT, 1000)
				ae.Uint16(TCA_AIFO_SAMPLE_SIZE, 64)
				ae.Uint32(TCA_AIFO_FLAGS, 0x20)
			},
		},
		{
			name:    "repeated_keyword_last_wins",
			cmdline: []string{"limit", "1", "limit", "2"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_PLIMIT, 2)
			},
		},
		{
			name:    "buckets_one",
			cmdline: []string{"buckets", "1"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_BUCKETS_LOG, 0)
			},
		},
		{
			name:     "buckets_zero_not_emitted",
			cmdline:  []string{"buckets", "0"},
			wantOpts: nil,
		},
		{
			name:     "hash_mask_zero_not_emitted",
			cmdline:  []string{"hash_mask", "0"},
			wantOpts: nil,
		},
		{
			name:    "limit_zero_emitted",
			cmdline: []string{"limit", "0"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_PLIMIT, 0)
			},
		},
		{
			// All ones doubles as the not-given marker, so the value is
			// silently swallowed:
			name:     "limit_all_ones_not_emitted",
			cmdline:  []string{"limit", "4294967295"},
			wantOpts: nil,
		},
		{
			name:    "flags_zero_emitted",
			cmdline: []string{"flags", "0"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_FLAGS, 0)
			},
		},
		{
			name:    "flags_keyword_case_insensitive",
			cmdline: []string{"FLAGS", "0x20"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_FLAGS, 0x20)
			},
		},
		{
			name:    "samples_at_max",
			cmdline: []string{"samples", "1024"},
			wantOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint16(TCA_AIFO_SAMPLE_SIZE, 1024)
			},
		},
		{
			name:    "samples_too_big",
			cmdline: []string{"samples", "1025"},
			wantErr: `value for "samples" too big`,
		},
		{
			name:    "samples_out_of_u16_range",
			cmdline: []string{"samples", "70000"},
			wantErr: `illegal "samples"`,
		},
		{
			name:    "illegal_limit",
			cmdline: []string{"limit", "abc"},
			wantErr: `illegal "limit"`,
		},
		{
			name:    "missing_value",
			cmdline: []string{"limit"},
			wantErr: `command line is not complete, try option "help"`,
		},
		{
			name:    "other_keywords_case_sensitive",
			cmdline: []string{"LIMIT", "100"},
			wantErr: `aifo_stfq: unknown parameter "LIMIT"`,
		},
		{
			name:    "unknown_parameter",
			cmdline: []string{"bogus"},
			wantErr: `aifo_stfq: unknown parameter "bogus"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testAifoStfqParseOptions(tc, t) })
	}
}

func TestAifoStfqParseHelp(t *testing.T) {
	for _, cmdline := range [][]string{
		{"help"},
		{"limit", "100", "help"},
	} {
		_, found, err := parseOptions(aifoStfqTestAdapter, cmdline...)
		if !errors.Is(err, ErrHelp) {
			t.Fatalf("%q: want: %v, got: %v", cmdline, ErrHelp, err)
		}
		if found {
			t.Fatalf("%q: options attribute emitted despite help", cmdline)
		}
	}
}

func TestAifoStfqUnknownParamError(t *testing.T) {
	_, _, err := parseOptions(aifoStfqTestAdapter, "bogus")
	unknownErr := &UnknownParamError{}
	if !errors.As(err, &unknownErr) {
		t.Fatalf("want: %T, got: %v", unknownErr, err)
	}
	if unknownErr.Kind != AIFO_STFQ_KIND || unknownErr.Param != "bogus" {
		t.Fatalf(
			"want: {%q, %q}, got: {%q, %q}",
			AIFO_STFQ_KIND, "bogus", unknownErr.Kind, unknownErr.Param,
		)
	}
}

func TestAifoStfqExplain(t *testing.T) {
	buf := &bytes.Buffer{}
	aifoStfqTestAdapter.Explain(buf)
	want := "Usage: ... aifo-stfq [ limit PACKETS ] [ burst PACKETS ] [ buckets NUMBER ] [ hash_mask MASK ] [ samples NUMBER ] [ speriod PACKETS ]\n"
	if got := buf.String(); got != want {
		t.Fatalf("want: %q, got: %q", want, got)
	}
}

type Ilog2TestCase struct {
	val  uint32
	want uint32
}

func TestIlog2(t *testing.T) {
	for _, tc := range []*Ilog2TestCase{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
		{1023, 10},
		{1024, 10},
		{1025, 11},
		{0x80000000, 31},
		{0xffffffff, 32},
	} {
		t.Run(fmt.Sprintf("%d", tc.val), func(t *testing.T) {
			if got := ilog2(tc.val); got != tc.want {
				t.Fatalf("ilog2(%d): want: %d, got: %d", tc.val, tc.want, got)
			}
		})
	}
}

type AifoFormatTestCase struct {
	name      string
	buildOpts func(ae *netlink.AttributeEncoder)
	raw       []byte
	mode      int
	want      string
	wantErr   bool
}

func testAifoStfqFormatOptions(tc *AifoFormatTestCase, t *testing.T) {
	data := tc.raw
	if tc.buildOpts != nil {
		ae := netlink.NewAttributeEncoder()
		tc.buildOpts(ae)
		var err error
		if data, err = ae.Encode(); err != nil {
			t.Fatal(err)
		}
	}
	p := NewPrinter(tc.mode)
	err := aifoStfqTestAdapter.FormatOptions(p, data)
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

func TestAifoStfqFormatOptions(t *testing.T) {
	allFields := func(ae *netlink.AttributeEncoder) {
		ae.Uint32(TCA_AIFO_PLIMIT, 1000)
		ae.Uint32(TCA_AIFO_BURST, 64)
		ae.Uint32(TCA_AIFO_BUCKETS_LOG, 10)
		ae.Uint32(TCA_AIFO_HASH_MASK, 255)
		ae.Uint32(TCA_AIFO_FLOW_PLIMIT, 100)
		ae.Uint16(TCA_AIFO_SAMPLE_SIZE, 64)
		ae.Uint16(TCA_AIFO_SAMPLE_PERIOD, 512)
		ae.Uint32(TCA_AIFO_FLAGS, 0x120)
	}

	for _, tc := range []*AifoFormatTestCase{
		{
			name: "absent_options",
			want: "",
		},
		{
			name:      "all_fields",
			buildOpts: allFields,
			want:      "limit 1000p burst 64 buckets 1024 hash_mask 255 flow_limit 100p samples 64 speriod 512 flags 0x120 ",
		},
		{
			name:      "all_fields_json",
			buildOpts: allFields,
			mode:      PRINT_JSON,
			want:      `"limit":1000,"burst":64,"buckets":1024,"hash_mask":255,"flow_limit":100,"samples":64,"speriod":512,"flags":288`,
		},
		{
			name: "short_attribute_skipped",
			buildOpts: func(ae *netlink.AttributeEncoder) {
				ae.Bytes(TCA_AIFO_PLIMIT, []byte{1, 2})
				ae.Uint32(TCA_AIFO_BURST, 5)
			},
			want: "burst 5 ",
		},
		{
			name: "unknown_attribute_ignored",
			buildOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_MAX+1, 7)
				ae.Uint32(TCA_AIFO_PLIMIT, 3)
			},
			want: "limit 3p ",
		},
		{
			name: "hex_flags_render",
			buildOpts: func(ae *netlink.AttributeEncoder) {
				ae.Uint32(TCA_AIFO_FLAGS, 0x20)
			},
			want: "flags 0x20 ",
		},
		{
			name:    "truncated_attribute_framing",
			raw:     []byte{8, 0},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testAifoStfqFormatOptions(tc, t) })
	}
}

type AifoXStatsFields struct {
	flows       uint32
	flowsGc     uint64
	allocErrors uint32
	noMark      uint32
	dropMark    uint32
	qlenPeak    uint32
	backlogPeak uint32
	quantAvg1k  uint32
}

func makeAifoXStats(f *AifoXStatsFields) []byte {
	data := make([]byte, AIFO_XSTATS_LEN)
	nlenc.PutUint32(data[AIFO_XSTATS_FLOWS_OFF:AIFO_XSTATS_FLOWS_OFF+4], f.flows)
	nlenc.PutUint64(data[AIFO_XSTATS_FLOWS_GC_OFF:AIFO_XSTATS_FLOWS_GC_OFF+8], f.flowsGc)
	nlenc.PutUint32(data[AIFO_XSTATS_ALLOC_ERRORS_OFF:AIFO_XSTATS_ALLOC_ERRORS_OFF+4], f.allocErrors)
	nlenc.PutUint32(data[AIFO_XSTATS_NO_MARK_OFF:AIFO_XSTATS_NO_MARK_OFF+4], f.noMark)
	nlenc.PutUint32(data[AIFO_XSTATS_DROP_MARK_OFF:AIFO_XSTATS_DROP_MARK_OFF+4], f.dropMark)
	nlenc.PutUint32(data[AIFO_XSTATS_QLEN_PEAK_OFF:AIFO_XSTATS_QLEN_PEAK_OFF+4], f.qlenPeak)
	nlenc.PutUint32(data[AIFO_XSTATS_BACKLOG_PEAK_OFF:AIFO_XSTATS_BACKLOG_PEAK_OFF+4], f.backlogPeak)
	nlenc.PutUint32(data[AIFO_XSTATS_QUANT_AVG_1K_OFF:AIFO_XSTATS_QUANT_AVG_1K_OFF+4], f.quantAvg1k)
	return data
}

type AifoXStatsTestCase struct {
	name    string
	fields  *AifoXStatsFields
	raw     []byte
	mode    int
	want    string
	wantErr bool
}

func testAifoStfqFormatXStats(tc *AifoXStatsTestCase, t *testing.T) {
	data := tc.raw
	if tc.fields != nil {
		data = makeAifoXStats(tc.fields)
	}
	p := NewPrinter(tc.mode)
	err := aifoStfqTestAdapter.FormatXStats(p, data)
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

func TestAifoStfqFormatXStats(t *testing.T) {
	full := &AifoXStatsFields{
		flows:       3,
		flowsGc:     12345678901,
		allocErrors: 0,
		noMark:      17,
		dropMark:    5,
		qlenPeak:    49,
		backlogPeak: 73500,
		quantAvg1k:  523,
	}
	noPeaks := &AifoXStatsFields{
		flows:      3,
		flowsGc:    2,
		noMark:     17,
		dropMark:   5,
		quantAvg1k: 1024,
	}

	for _, tc := range []*AifoXStatsTestCase{
		{
			name: "absent_xstats",
			want: "",
		},
		{
			name:   "full",
			fields: full,
			want:   "  flows 3 gc 12345678901 alloc_errors 0 \n  no_mark 17 drop_mark 5 quant_avg 0.511  backlog_peak 73500b 49p",
		},
		{
			name:   "full_json",
			fields: full,
			mode:   PRINT_JSON,
			want:   `"flows":3,"flows_gc":12345678901,"alloc_errors":0,"no_mark":17,"drop_mark":5,"quant_avg":0.511,"backlog_peak":73500,"qlen_peak":49`,
		},
		{
			// Both peaks zero, e.g. right after a reset-on-read, and the
			// pair disappears:
			name:   "zero_peaks_omitted",
			fields: noPeaks,
			want:   "  flows 3 gc 2 alloc_errors 0 \n  no_mark 17 drop_mark 5 quant_avg 1.000",
		},
		{
			// A single non zero peak still prints both:
			name: "single_peak_prints_pair",
			fields: &AifoXStatsFields{
				qlenPeak: 2,
			},
			want: "  flows 0 gc 0 alloc_errors 0 \n  no_mark 0 drop_mark 0 quant_avg 0.000  backlog_peak 0b 2p",
		},
		{
			name:    "short_payload",
			raw:     make([]byte, AIFO_XSTATS_LEN-1),
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testAifoStfqFormatXStats(tc, t) })
	}
}

type AifoRoundTripTestCase struct {
	name    string
	cmdline []string
	want    string
}

func testAifoStfqRoundTrip(tc *AifoRoundTripTestCase, t *testing.T) {
	data, found, err := parseOptions(aifoStfqTestAdapter, tc.cmdline...)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("no options attribute emitted")
	}
	p := NewPrinter(PRINT_TEXT)
	if err := aifoStfqTestAdapter.FormatOptions(p, data); err != nil {
		t.Fatal(err)
	}
	if got := p.String(); got != tc.want {
		t.Fatalf("want: %q, got: %q", tc.want, got)
	}
}

func TestAifoStfqRoundTrip(t *testing.T) {
	for _, tc := range []*AifoRoundTripTestCase{
		{
			name:    "limit_only",
			cmdline: []string{"limit", "100"},
			want:    "limit 100p ",
		},
		{
			name:    "scrambled_input_fixed_render_order",
			cmdline: []string{"flags", "0x120", "buckets", "512", "limit", "10"},
			want:    "limit 10p buckets 512 flags 0x120 ",
		},
		{
			name:    "sampling_only",
			cmdline: []string{"samples", "64", "speriod", "512"},
			want:    "samples 64 speriod 512 ",
		},
		{
			name:    "empty",
			cmdline: nil,
			want:    "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) { testAifoStfqRoundTrip(tc, t) })
	}
}
