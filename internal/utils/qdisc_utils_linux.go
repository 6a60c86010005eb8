// Compact qdisc stats, Linux

//go:build linux

package utils

import (
	"github.com/ema/qdisc"
)

var QdiscAvail = true

func (qb *QdiscBrief) Update() error {
	qdiscInfo, err := qdisc.Get()
	if err != nil {
		return err
	}

	scanNum := qb.scanNum + 1
	for _, qi := range qdiscInfo {
		briefIf := qb.Info[qi.IfaceName]
		if briefIf == nil {
			briefIf = &QdiscBriefIf{}
			qb.Info[qi.IfaceName] = briefIf
		}
		briefIf.Kind = qi.Kind
		briefIf.scanNum = scanNum

		briefIf.Uint32[QDISC_BRIEF_PARENT] = qi.Parent
		briefIf.Uint32[QDISC_BRIEF_HANDLE] = qi.Handle
		briefIf.Uint32[QDISC_BRIEF_PACKETS] = qi.Packets
		briefIf.Uint32[QDISC_BRIEF_DROPS] = qi.Drops
		briefIf.Uint32[QDISC_BRIEF_REQUEUES] = qi.Requeues
		briefIf.Uint32[QDISC_BRIEF_OVERLIMITS] = qi.Overlimits
		briefIf.Uint32[QDISC_BRIEF_QLEN] = qi.Qlen
		briefIf.Uint32[QDISC_BRIEF_BACKLOG] = qi.Backlog

		briefIf.Uint64[QDISC_BRIEF_BYTES] = qi.Bytes
		briefIf.Uint64[QDISC_BRIEF_GCFLOWS] = qi.GcFlows
		briefIf.Uint64[QDISC_BRIEF_THROTTLED] = qi.Throttled
		briefIf.Uint64[QDISC_BRIEF_FLOWSPLIMIT] = qi.FlowsPlimit
	}

	for ifName, briefIf := range qb.Info {
		if briefIf.scanNum != scanNum {
			delete(qb.Info, ifName)
		}
	}

	qb.scanNum = scanNum
	return nil
}
