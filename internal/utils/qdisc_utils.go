// Compact per interface qdisc stats via the high level qdisc package.

// This is the lightweight alternative to the full rtnetlink dump: one root
// qdisc per interface, no options payload, suitable for the brief watch
// table.

package utils

// The info returned by qdisc.Get is repackaged as lists of uint32/64 so that
// table columns and rate deltas can be computed in a loop:

const (
	// uint32 indices:
	QDISC_BRIEF_PARENT = iota
	QDISC_BRIEF_HANDLE
	QDISC_BRIEF_PACKETS
	QDISC_BRIEF_DROPS
	QDISC_BRIEF_REQUEUES
	QDISC_BRIEF_OVERLIMITS
	QDISC_BRIEF_QLEN
	QDISC_BRIEF_BACKLOG

	// Must be last:
	QDISC_BRIEF_UINT32_NUM_STATS
)

const (
	// uint64 indices:
	QDISC_BRIEF_BYTES = iota
	QDISC_BRIEF_GCFLOWS
	QDISC_BRIEF_THROTTLED
	QDISC_BRIEF_FLOWSPLIMIT

	// Must be last:
	QDISC_BRIEF_UINT64_NUM_STATS
)

type QdiscBriefIf struct {
	Kind   string
	Uint32 [QDISC_BRIEF_UINT32_NUM_STATS]uint32
	Uint64 [QDISC_BRIEF_UINT64_NUM_STATS]uint64
	// Scan number used to identify out of scope interfaces:
	scanNum int
}

type QdiscBrief struct {
	// Map info by I/F name:
	Info map[string]*QdiscBriefIf
	// Scan number incremented w/ every update; I/F's with
	// scan#(I/F) != scan# have vanished and are removed:
	scanNum int
}

func NewQdiscBrief() *QdiscBrief {
	return &QdiscBrief{
		Info: make(map[string]*QdiscBriefIf),
	}
}
