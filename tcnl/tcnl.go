// Qdisc control over rtnetlink, a-la tc qdisc.

// The dump side is based on https://github.com/ema/qdisc, adapted for reusable
// objects and extended w/ raw TCA_OPTIONS and app xstats capture so that
// discipline specific payloads can be handed to their option adapters. The
// modify side (add/change/replace/delete) follows the same message layout in
// the opposite direction.

package tcnl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

const (
	TCA_UNSPEC = iota
	TCA_KIND
	TCA_OPTIONS
	TCA_STATS
	TCA_XSTATS
	TCA_RATE
	TCA_FCNT
	TCA_STATS2
	TCA_STAB
	TCA_PAD
	TCA_DUMP_INVISIBLE
	TCA_CHAIN
	TCA_HW_OFFLOAD
	// __TCA_MAX
)

const (
	TCA_STATS_UNSPEC = iota
	TCA_STATS_BASIC
	TCA_STATS_RATE_EST
	TCA_STATS_QUEUE
	TCA_STATS_APP
	TCA_STATS_RATE_EST64
	// __TCA_STATS_MAX
)

// Attribute type field flags v. mask:
const (
	NLA_F_NESTED        = uint16(1) << 15
	NLA_F_NET_BYTEORDER = uint16(1) << 14
	NLA_TYPE_MASK       = 0x3fff
)

// Handle encoding, maj:min in the upper:lower 16 bits:
const (
	TC_H_UNSPEC   = uint32(0)
	TC_H_ROOT     = uint32(0xffffffff)
	TC_H_INGRESS  = uint32(0xfffffff1)
	TC_H_MAJ_MASK = uint32(0xffff0000)
	TC_H_MIN_MASK = uint32(0x0000ffff)
)

// Modify operations:
const (
	QDISC_OP_ADD = iota
	QDISC_OP_CHANGE
	QDISC_OP_REPLACE
	QDISC_OP_DEL

	// Must be last:
	QDISC_OP_NUM_OPS
)

var qdiscOpNames = [QDISC_OP_NUM_OPS]string{
	QDISC_OP_ADD:     "add",
	QDISC_OP_CHANGE:  "change",
	QDISC_OP_REPLACE: "replace",
	QDISC_OP_DEL:     "delete",
}

func QdiscOpName(op int) string {
	if op < 0 || op >= QDISC_OP_NUM_OPS {
		return fmt.Sprintf("op#%d", op)
	}
	return qdiscOpNames[op]
}

// Optional receive buffer size for the netlink socket, 0 leaves the OS
// default in place. Set it before the first operation:
var ReceiveBufferSize = 0

// A qdisc modify request. Attrs holds the encoded attribute list that
// follows tcmsg, TCA_KIND included:
type QdiscRequest struct {
	IfIndex int32
	Handle  uint32
	Parent  uint32
	Attrs   []byte
}

// struct tcmsg, 20 bytes on the wire: family byte + 3 padding bytes, then
// ifindex, handle, parent and info, all 32 bit:
const TCMSG_LEN = 20

type TcMsg struct {
	IfIndex int32
	Handle  uint32
	Parent  uint32
	// Refcount in dump replies, unused in requests:
	Info uint32
}

func (tcm *TcMsg) Encode() []byte {
	b := make([]byte, TCMSG_LEN)
	// b[0] family, left AF_UNSPEC:
	nlenc.PutInt32(b[4:8], tcm.IfIndex)
	nlenc.PutUint32(b[8:12], tcm.Handle)
	nlenc.PutUint32(b[12:16], tcm.Parent)
	nlenc.PutUint32(b[16:20], tcm.Info)
	return b
}

func DecodeTcMsg(data []byte) (TcMsg, error) {
	if len(data) < TCMSG_LEN {
		return TcMsg{}, fmt.Errorf("short tcmsg, len=%d < %d", len(data), TCMSG_LEN)
	}
	return TcMsg{
		IfIndex: nlenc.Int32(data[4:8]),
		Handle:  nlenc.Uint32(data[8:12]),
		Parent:  nlenc.Uint32(data[12:16]),
		Info:    nlenc.Uint32(data[16:20]),
	}, nil
}

func MakeHandle(maj, min uint16) uint32 {
	return uint32(maj)<<16 | uint32(min)
}

// Parse a qdisc handle: `MAJ:', `MAJ' or `none', w/ MAJ in hex. A qdisc
// handle always has minor number 0 and anything after `:' is ignored, the
// same way tc does it:
func ParseQdiscHandle(s string) (uint32, error) {
	if s == "none" {
		return TC_H_UNSPEC, nil
	}
	majStr, _, _ := strings.Cut(s, ":")
	maj, err := strconv.ParseUint(majStr, 16, 32)
	if err != nil || maj >= 1<<16 {
		return 0, fmt.Errorf("invalid qdisc handle %q", s)
	}
	return uint32(maj) << 16, nil
}

// Format a qdisc handle as `MAJ:', MAJ in hex:
func FormatQdiscHandle(h uint32) string {
	return fmt.Sprintf("%x:", h>>16)
}

// Parse a class ID: `root', `none', `MAJ:MIN' (either side may be left
// empty) or a raw 32 bit value, all numbers in hex:
func ParseClassID(s string) (uint32, error) {
	switch s {
	case "root":
		return TC_H_ROOT, nil
	case "none":
		return TC_H_UNSPEC, nil
	}
	majStr, minStr, hasMin := strings.Cut(s, ":")
	if !hasMin {
		h, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid class ID %q", s)
		}
		return uint32(h), nil
	}
	var h uint32
	if majStr != "" {
		maj, err := strconv.ParseUint(majStr, 16, 32)
		if err != nil || maj >= 1<<16 {
			return 0, fmt.Errorf("invalid class ID %q", s)
		}
		h = uint32(maj) << 16
	}
	if minStr != "" {
		min, err := strconv.ParseUint(minStr, 16, 32)
		if err != nil || min >= 1<<16 {
			return 0, fmt.Errorf("invalid class ID %q", s)
		}
		h |= uint32(min)
	}
	return h, nil
}

func FormatClassID(h uint32) string {
	switch {
	case h == TC_H_ROOT:
		return "root"
	case h == TC_H_UNSPEC:
		return "none"
	case h&TC_H_MAJ_MASK == 0:
		return fmt.Sprintf(":%x", h&TC_H_MIN_MASK)
	case h&TC_H_MIN_MASK == 0:
		return fmt.Sprintf("%x:", h>>16)
	default:
		return fmt.Sprintf("%x:%x", h>>16, h&TC_H_MIN_MASK)
	}
}

// Build a tag indexed table from a flat attribute list. Tags beyond maxTag
// are ignored and for repeated tags the last occurrence wins, matching the
// kernel's own parsing. Absent tags yield nil entries; the whole payload of
// each present attribute is preserved so its size can be checked by the
// consumer:
func AttrTable(data []byte, maxTag uint16) ([][]byte, error) {
	attrs, err := netlink.UnmarshalAttributes(data)
	if err != nil {
		return nil, err
	}
	tb := make([][]byte, maxTag+1)
	for _, attr := range attrs {
		if typ := attr.Type & NLA_TYPE_MASK; typ <= maxTag {
			tb[typ] = attr.Data
		}
	}
	return tb, nil
}
