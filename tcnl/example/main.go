package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

var qdiscStatUint32IndexNameMap = map[int]string{
	tcnl.QDISC_STAT_PACKETS:    "QDISC_STAT_PACKETS",
	tcnl.QDISC_STAT_DROPS:      "QDISC_STAT_DROPS",
	tcnl.QDISC_STAT_REQUEUES:   "QDISC_STAT_REQUEUES",
	tcnl.QDISC_STAT_OVERLIMITS: "QDISC_STAT_OVERLIMITS",
	tcnl.QDISC_STAT_QLEN:       "QDISC_STAT_QLEN",
	tcnl.QDISC_STAT_BACKLOG:    "QDISC_STAT_BACKLOG",
}

var qdiscStatUint64IndexNameMap = map[int]string{
	tcnl.QDISC_STAT_BYTES: "QDISC_STAT_BYTES",
}

func main() {
	fmt.Printf("QdiscAvail: %v\n", tcnl.QdiscAvail)

	qd := tcnl.NewQdiscDump()

	for k := 1; k <= 2; k++ {
		start := time.Now()
		err := qd.Update()
		callDuration := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qd.Update(): %v\n", err)
			return
		}
		fmt.Printf("Call# %d duration: %s\n", k, callDuration)

		for _, qi := range qd.Info {
			fmt.Println()
			fmt.Printf("I/F Name: %s\n", qi.IfName)
			fmt.Printf("\tKind: %s\n", qi.Kind)
			fmt.Printf("\tHandle: %s, Parent: %s, Refcnt: %d\n",
				tcnl.FormatClassID(qi.Handle), tcnl.FormatClassID(qi.Parent), qi.Refcnt)
			for i := 0; i < tcnl.QDISC_STAT_UINT32_NUM; i++ {
				fmt.Printf(
					"\tUint32[%d (%s)]: %d\n",
					i, qdiscStatUint32IndexNameMap[i], qi.Uint32[i],
				)
			}
			for i := 0; i < tcnl.QDISC_STAT_UINT64_NUM; i++ {
				fmt.Printf(
					"\tUint64[%d (%s)]: %d\n",
					i, qdiscStatUint64IndexNameMap[i], qi.Uint64[i],
				)
			}
			fmt.Printf("\tOptions: %d bytes, XStats: %d bytes\n", len(qi.Options), len(qi.XStats))
		}
		fmt.Println()
	}
}
