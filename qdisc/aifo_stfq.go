// The aifo_stfq discipline: AIFO admission control (Admission-In
// First-Out, probabilistic drop from quantile sampling) on top of STFQ
// (Start-Time Fair Queuing) scheduling.

package qdisc

import (
	"fmt"
	"io"
	"strings"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

const AIFO_STFQ_KIND = "aifo_stfq"

const AIFO_SAMPLE_SIZE_MAX = 1024

// Attribute types nested inside TCA_OPTIONS:
const (
	TCA_AIFO_UNSPEC = iota
	TCA_AIFO_PLIMIT        // limit of total number of packets in queue
	TCA_AIFO_BURST         // AIFO headroom before dropping packets
	TCA_AIFO_BUCKETS_LOG   // log2(number of buckets)
	TCA_AIFO_HASH_MASK     // mask applied to skb hashes
	TCA_AIFO_FLOW_PLIMIT   // limit of packets per flow
	TCA_AIFO_SAMPLE_SIZE   // quantile sample size
	TCA_AIFO_SAMPLE_PERIOD // quantile sample period
	TCA_AIFO_FLAGS
	// Must be last:
	__TCA_AIFO_MAX
)

const TCA_AIFO_MAX = __TCA_AIFO_MAX - 1

// TCA_AIFO_FLAGS bits:
const (
	SCF_PEAK_NORESET = 0x0020 // don't reset peak values when reading them
	AIFF_QUANT_FIXED = 0x0000 // quantile from the sample set alone
	AIFF_QUANT_ADD1  = 0x0100 // quantile counts the arriving packet too
	AIFF_QUANT_ORIG  = 0x0200 // quantile per the original AIFO paper
)

// struct tc_aifo_xstats layout; a 4 byte hole follows the flow count, the
// 64 bit member after it being 8 byte aligned:
const (
	AIFO_XSTATS_FLOWS_OFF        = 0  // u32
	AIFO_XSTATS_FLOWS_GC_OFF     = 8  // u64
	AIFO_XSTATS_ALLOC_ERRORS_OFF = 16 // u32
	AIFO_XSTATS_NO_MARK_OFF      = 20 // u32
	AIFO_XSTATS_DROP_MARK_OFF    = 24 // u32
	AIFO_XSTATS_QLEN_PEAK_OFF    = 28 // u32
	AIFO_XSTATS_BACKLOG_PEAK_OFF = 32 // u32
	AIFO_XSTATS_QUANT_AVG_1K_OFF = 36 // u32, average quantile * 1024
	AIFO_XSTATS_LEN              = 40
)

// ilog2 returns the smallest k such that 1 << k >= val; both 0 and 1 map
// to 0:
func ilog2(val uint32) uint32 {
	res := uint32(0)
	if val == 0 {
		return 0
	}
	val--
	for val != 0 {
		res++
		val >>= 1
	}
	return res
}

type AifoStfqAdapter struct{}

func init() {
	Register(&AifoStfqAdapter{})
}

func (a *AifoStfqAdapter) Kind() string {
	return AIFO_STFQ_KIND
}

func (a *AifoStfqAdapter) Explain(w io.Writer) {
	fmt.Fprintln(w, "Usage: ... aifo-stfq [ limit PACKETS ] [ burst PACKETS ] [ buckets NUMBER ] [ hash_mask MASK ] [ samples NUMBER ] [ speriod PACKETS ]")
}

func (a *AifoStfqAdapter) ParseOptions(args *Args, ae *netlink.AttributeEncoder) error {
	// All ones, resp. 0 for buckets and hash_mask, marks a parameter not
	// given on the command line; it is not emitted and the kernel default
	// stays in force:
	var (
		plimit       = ^uint32(0)
		burst        = ^uint32(0)
		buckets      = uint32(0)
		hashMask     = uint32(0)
		flowPlimit   = ^uint32(0)
		sampleSize   = ^uint16(0)
		samplePeriod = ^uint16(0)
		flags        = uint32(0)
		flagsUpd     = false

		val string
		err error
	)

	for args.More() {
		arg := args.Next()
		switch {
		case arg == "limit":
			if val, err = args.NextValue(); err == nil {
				plimit, err = ParseU32("limit", val)
			}
		case arg == "buckets":
			if val, err = args.NextValue(); err == nil {
				buckets, err = ParseU32("buckets", val)
			}
		case arg == "burst":
			if val, err = args.NextValue(); err == nil {
				burst, err = ParseU32("burst", val)
			}
		case arg == "hash_mask":
			if val, err = args.NextValue(); err == nil {
				hashMask, err = ParseU32("hash_mask", val)
			}
		case arg == "flow_limit":
			if val, err = args.NextValue(); err == nil {
				flowPlimit, err = ParseU32("flow_limit", val)
			}
		case arg == "samples":
			if val, err = args.NextValue(); err == nil {
				sampleSize, err = ParseU16("samples", val)
			}
			if err == nil && sampleSize > AIFO_SAMPLE_SIZE_MAX {
				err = fmt.Errorf("value for %q too big", "samples")
			}
		case arg == "speriod":
			if val, err = args.NextValue(); err == nil {
				samplePeriod, err = ParseU16("speriod", val)
			}
		case strings.EqualFold(arg, "flags"):
			if val, err = args.NextValue(); err == nil {
				flags, err = ParseU32("flags", val)
				flagsUpd = err == nil
			}
		case arg == "help":
			return ErrHelp
		default:
			return &UnknownParamError{Kind: AIFO_STFQ_KIND, Param: arg}
		}
		if err != nil {
			return err
		}
	}

	opts := netlink.NewAttributeEncoder()
	if plimit != ^uint32(0) {
		opts.Uint32(TCA_AIFO_PLIMIT, plimit)
	}
	if burst != ^uint32(0) {
		opts.Uint32(TCA_AIFO_BURST, burst)
	}
	if buckets != 0 {
		opts.Uint32(TCA_AIFO_BUCKETS_LOG, ilog2(buckets))
	}
	if hashMask != 0 {
		opts.Uint32(TCA_AIFO_HASH_MASK, hashMask)
	}
	if flowPlimit != ^uint32(0) {
		opts.Uint32(TCA_AIFO_FLOW_PLIMIT, flowPlimit)
	}
	if sampleSize != ^uint16(0) {
		opts.Uint16(TCA_AIFO_SAMPLE_SIZE, sampleSize)
	}
	if samplePeriod != ^uint16(0) {
		opts.Uint16(TCA_AIFO_SAMPLE_PERIOD, samplePeriod)
	}
	if flagsUpd {
		opts.Uint32(TCA_AIFO_FLAGS, flags)
	}
	optsData, err := opts.Encode()
	if err != nil {
		return err
	}
	ae.Bytes(tcnl.TCA_OPTIONS, optsData)
	return nil
}

func (a *AifoStfqAdapter) FormatOptions(p *Printer, data []byte) error {
	if data == nil {
		return nil
	}
	tb, err := tcnl.AttrTable(data, TCA_AIFO_MAX)
	if err != nil {
		return err
	}
	if b := tb[TCA_AIFO_PLIMIT]; len(b) >= 4 {
		p.Uint("limit", "limit %dp ", uint64(nlenc.Uint32(b[:4])))
	}
	if b := tb[TCA_AIFO_BURST]; len(b) >= 4 {
		p.Uint("burst", "burst %d ", uint64(nlenc.Uint32(b[:4])))
	}
	if b := tb[TCA_AIFO_BUCKETS_LOG]; len(b) >= 4 {
		p.Uint("buckets", "buckets %d ", uint64(uint32(1)<<nlenc.Uint32(b[:4])))
	}
	if b := tb[TCA_AIFO_HASH_MASK]; len(b) >= 4 {
		p.Uint("hash_mask", "hash_mask %d ", uint64(nlenc.Uint32(b[:4])))
	}
	if b := tb[TCA_AIFO_FLOW_PLIMIT]; len(b) >= 4 {
		p.Uint("flow_limit", "flow_limit %dp ", uint64(nlenc.Uint32(b[:4])))
	}
	if b := tb[TCA_AIFO_SAMPLE_SIZE]; len(b) >= 2 {
		p.Uint("samples", "samples %d ", uint64(nlenc.Uint16(b[:2])))
	}
	if b := tb[TCA_AIFO_SAMPLE_PERIOD]; len(b) >= 2 {
		p.Uint("speriod", "speriod %d ", uint64(nlenc.Uint16(b[:2])))
	}
	if b := tb[TCA_AIFO_FLAGS]; len(b) >= 4 {
		p.Uint("flags", "flags 0x%X ", uint64(nlenc.Uint32(b[:4])))
	}
	return nil
}

func (a *AifoStfqAdapter) FormatXStats(p *Printer, data []byte) error {
	if data == nil {
		return nil
	}
	if len(data) < AIFO_XSTATS_LEN {
		return fmt.Errorf(
			"%s: xstats payload too short: %d < %d bytes",
			AIFO_STFQ_KIND, len(data), AIFO_XSTATS_LEN,
		)
	}
	p.Uint("flows", "  flows %d",
		uint64(nlenc.Uint32(data[AIFO_XSTATS_FLOWS_OFF:AIFO_XSTATS_FLOWS_OFF+4])))
	p.Uint("flows_gc", " gc %d",
		nlenc.Uint64(data[AIFO_XSTATS_FLOWS_GC_OFF:AIFO_XSTATS_FLOWS_GC_OFF+8]))
	p.Uint("alloc_errors", " alloc_errors %d",
		uint64(nlenc.Uint32(data[AIFO_XSTATS_ALLOC_ERRORS_OFF:AIFO_XSTATS_ALLOC_ERRORS_OFF+4])))
	p.Uint("no_mark", " \n  no_mark %d",
		uint64(nlenc.Uint32(data[AIFO_XSTATS_NO_MARK_OFF:AIFO_XSTATS_NO_MARK_OFF+4])))
	p.Uint("drop_mark", " drop_mark %d",
		uint64(nlenc.Uint32(data[AIFO_XSTATS_DROP_MARK_OFF:AIFO_XSTATS_DROP_MARK_OFF+4])))
	p.Float("quant_avg", " quant_avg %.3f",
		float64(nlenc.Uint32(data[AIFO_XSTATS_QUANT_AVG_1K_OFF:AIFO_XSTATS_QUANT_AVG_1K_OFF+4]))/1024.0)
	backlogPeak := nlenc.Uint32(data[AIFO_XSTATS_BACKLOG_PEAK_OFF : AIFO_XSTATS_BACKLOG_PEAK_OFF+4])
	qlenPeak := nlenc.Uint32(data[AIFO_XSTATS_QLEN_PEAK_OFF : AIFO_XSTATS_QLEN_PEAK_OFF+4])
	// The peak pair is printed only while at least one of them is non zero,
	// i.e. it disappears after a SCF_PEAK_NORESET-less read:
	if backlogPeak != 0 || qlenPeak != 0 {
		p.Uint("backlog_peak", "  backlog_peak %db", uint64(backlogPeak))
		p.Uint("qlen_peak", " %dp", uint64(qlenPeak))
	}
	return nil
}
