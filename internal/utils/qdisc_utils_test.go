package utils

import (
	"bytes"
	"fmt"
	"sort"
	"testing"
)

var testQdiscBriefUint32IndexNameMap = map[int]string{
	QDISC_BRIEF_PARENT:     "QDISC_BRIEF_PARENT",
	QDISC_BRIEF_HANDLE:     "QDISC_BRIEF_HANDLE",
	QDISC_BRIEF_PACKETS:    "QDISC_BRIEF_PACKETS",
	QDISC_BRIEF_DROPS:      "QDISC_BRIEF_DROPS",
	QDISC_BRIEF_REQUEUES:   "QDISC_BRIEF_REQUEUES",
	QDISC_BRIEF_OVERLIMITS: "QDISC_BRIEF_OVERLIMITS",
	QDISC_BRIEF_QLEN:       "QDISC_BRIEF_QLEN",
	QDISC_BRIEF_BACKLOG:    "QDISC_BRIEF_BACKLOG",
}

var testQdiscBriefUint64IndexNameMap = map[int]string{
	QDISC_BRIEF_BYTES:       "QDISC_BRIEF_BYTES",
	QDISC_BRIEF_GCFLOWS:     "QDISC_BRIEF_GCFLOWS",
	QDISC_BRIEF_THROTTLED:   "QDISC_BRIEF_THROTTLED",
	QDISC_BRIEF_FLOWSPLIMIT: "QDISC_BRIEF_FLOWSPLIMIT",
}

func TestQdiscBriefUpdate(t *testing.T) {
	if !QdiscAvail {
		t.Skipf("qdisc not available for this OS")
	}

	qb := NewQdiscBrief()
	err := qb.Update()
	if err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}

	ifNameList := make([]string, len(qb.Info))
	i := 0
	for ifName := range qb.Info {
		ifNameList[i] = ifName
		i++
	}
	sort.Strings(ifNameList)

	for _, ifName := range ifNameList {
		fmt.Fprintf(buf, "\n\nI/F Name: %s", ifName)
		briefIf := qb.Info[ifName]
		fmt.Fprintf(buf, "\n\tKind: %s", briefIf.Kind)
		for i := 0; i < QDISC_BRIEF_UINT32_NUM_STATS; i++ {
			fmt.Fprintf(
				buf,
				"\n\tUint32[%d (%s)]: %d",
				i, testQdiscBriefUint32IndexNameMap[i], briefIf.Uint32[i],
			)
		}
		for i := 0; i < QDISC_BRIEF_UINT64_NUM_STATS; i++ {
			fmt.Fprintf(
				buf,
				"\n\tUint64[%d (%s)]: %d",
				i, testQdiscBriefUint64IndexNameMap[i], briefIf.Uint64[i],
			)
		}
		fmt.Fprintf(buf, "\n")
	}

	t.Log(buf)
}
