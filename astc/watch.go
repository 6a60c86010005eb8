// watch object: periodic qdisc statistics reports w/ rates.

package astc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bgp59/aifo-stfq-tc/internal/utils"
	"github.com/bgp59/aifo-stfq-tc/procfs"
	"github.com/bgp59/aifo-stfq-tc/qdisc"
	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

// Every interval the watch takes a sample (full rtnetlink qdisc dump or, for
// brief mode, the compact per interface root qdisc stats, plus optionally
// /proc/net/dev) and reports the deltas against the previous sample. Samples
// are kept in dual storage, current and previous, w/ the current one
// indicated by currIndex; the report flips the index so the just used
// current becomes the next pass's previous. The first sample yields no
// report, rates need two.

const (
	WATCH_STATE_CREATED = iota
	WATCH_STATE_RUNNING
	WATCH_STATE_STOPPED
)

var watchStateMap = map[int]string{
	WATCH_STATE_CREATED: "Created",
	WATCH_STATE_RUNNING: "Running",
	WATCH_STATE_STOPPED: "Stopped",
}

// Byte count delta over the interval -> kbit/s:
const (
	WATCH_BYTES_RATE_FACTOR = 8. / 1000.
	WATCH_RATE_PREC         = 1
)

var watchLog = NewCompLogger("watch")

// Reports are built into buffers drawn from a pool, sized for steady state
// reuse:
var watchBufPool = utils.NewReadFileBufPool(4, utils.READ_FILE_BUF_POOL_MAX_READ_SIZE_UNBOUND)

type Watch struct {
	// Where the reports go:
	out io.Writer

	// Refresh interval:
	interval time.Duration
	// Condensed one line per interface table instead of the full qdisc list:
	brief bool
	// Include /proc/net/dev rx/tx rates:
	netDev bool
	// Restrict the reports to one interface, "" for all:
	devName       string
	filterIfIndex int32

	// Dual storage for current/previous samples:
	qdiscDump  [2]*tcnl.QdiscDump
	qdiscBrief [2]*utils.QdiscBrief
	netDevStat [2]*procfs.NetDev
	sampleTs   [2]time.Time
	currIndex  int

	procfsRoot string

	// The error that stopped the sampling loop, if any; safe to read after
	// Shutdown:
	err error

	// The state of the watch, whether it is running or not:
	state   int
	stateMu *sync.Mutex
	// The apparatus needed for clean shutdown:
	ctx      context.Context
	cancelFn context.CancelFunc
	wg       *sync.WaitGroup

	// The following are needed for testing only. Left to their default
	// values, the usual objects will be used:
	timeNowFn          func() time.Time
	qdiscUpdateFn      func(qd *tcnl.QdiscDump) error
	qdiscBriefUpdateFn func(qb *utils.QdiscBrief) error
}

func (cmd *Command) watchUsage() {
	fmt.Fprintf(cmd.ErrOut, `Usage: %s watch [ dev IFNAME ] [ interval DURATION ] [ brief ] [ netdev ]
Periodic qdisc statistics reports, rates computed over the interval. Stop
w/ SIGINT/SIGTERM. "brief" renders a one line per interface table based on
the root qdisc, "netdev" adds rx/tx rates from PROCFS/net/dev.
`, ASTC_APP_NAME)
}

func (cmd *Command) newWatch(args *qdisc.Args) (*Watch, error) {
	watchCfg := cmd.watchConfig
	if watchCfg == nil {
		watchCfg = DefaultWatchConfig()
	}

	w := &Watch{
		out:        cmd.Out,
		brief:      watchCfg.Brief,
		netDev:     watchCfg.NetDev,
		procfsRoot: cmd.procfsRoot,
		state:      WATCH_STATE_CREATED,
		stateMu:    &sync.Mutex{},
		wg:         &sync.WaitGroup{},

		qdiscUpdateFn: cmd.qdiscUpdateFn,
	}
	w.ctx, w.cancelFn = context.WithCancel(context.Background())

	interval := watchCfg.Interval
	if interval == "" {
		interval = WATCH_CONFIG_INTERVAL_DEFAULT
	}

	var (
		val string
		err error
	)
	for args.More() {
		arg := args.Next()
		switch arg {
		case "dev":
			w.devName, err = args.NextValue()
		case "interval":
			if val, err = args.NextValue(); err == nil {
				interval = val
			}
		case "brief":
			w.brief = true
		case "netdev":
			w.netDev = true
		case "help":
			cmd.watchUsage()
			return nil, qdisc.ErrHelp
		default:
			cmd.watchUsage()
			return nil, &qdisc.UnknownParamError{Kind: "watch", Param: arg}
		}
		if err != nil {
			return nil, err
		}
	}

	w.interval, err = time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("watch: invalid interval %q: %v", interval, err)
	}
	if w.interval <= 0 {
		return nil, fmt.Errorf("watch: interval %s not > 0", w.interval)
	}

	if w.devName != "" && !w.brief {
		if w.filterIfIndex, err = cmd.ifIndex(w.devName); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (cmd *Command) runWatch(args *qdisc.Args) error {
	w, err := cmd.newWatch(args)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	w.Start()
	select {
	case sig := <-sigChan:
		watchLog.Infof("%s signal, exiting", sig)
	case <-w.Done():
	}
	w.Shutdown()
	return w.Err()
}

func (w *Watch) Start() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.state != WATCH_STATE_CREATED {
		watchLog.Warnf(
			"watch can only be started from state %d '%s', not from %d '%s'",
			WATCH_STATE_CREATED, watchStateMap[WATCH_STATE_CREATED],
			w.state, watchStateMap[w.state],
		)
		return
	}

	watchLog.Infof(
		"start watch: interval=%s, brief=%v, netdev=%v, dev=%q",
		w.interval, w.brief, w.netDev, w.devName,
	)
	w.wg.Add(1)
	go w.loop()
	w.state = WATCH_STATE_RUNNING
}

func (w *Watch) Shutdown() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.state == WATCH_STATE_STOPPED {
		watchLog.Warnf(
			"watch already in state %d '%s'",
			WATCH_STATE_STOPPED, watchStateMap[WATCH_STATE_STOPPED],
		)
		return
	}

	w.cancelFn()
	w.wg.Wait()
	w.state = WATCH_STATE_STOPPED
	watchLog.Info("watch stopped")
}

// Closed when the sampling loop ends, on shutdown or on a sampling error:
func (w *Watch) Done() <-chan struct{} {
	return w.ctx.Done()
}

// The error that ended the loop, nil for a clean shutdown. Call after
// Shutdown, which synchronizes w/ the loop:
func (w *Watch) Err() error {
	return w.err
}

func (w *Watch) loop() {
	defer w.wg.Done()

	// The first sample is taken right away, reports start w/ the second one:
	if err := w.execute(); err != nil {
		w.stopOnError(err)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.execute(); err != nil {
				w.stopOnError(err)
				return
			}
		}
	}
}

func (w *Watch) stopOnError(err error) {
	watchLog.Warnf("watch stopped: %v", err)
	w.err = err
	w.cancelFn()
}

func (w *Watch) qdiscUpdate(qd *tcnl.QdiscDump) error {
	if w.qdiscUpdateFn != nil {
		return w.qdiscUpdateFn(qd)
	}
	return qd.Update()
}

func (w *Watch) qdiscBriefUpdate(qb *utils.QdiscBrief) error {
	if w.qdiscBriefUpdateFn != nil {
		return w.qdiscBriefUpdateFn(qb)
	}
	return qb.Update()
}

// One sampling pass: refresh the current slot, lazily built on first use,
// then report against the previous one:
func (w *Watch) execute() error {
	timeNowFn := time.Now
	if w.timeNowFn != nil {
		timeNowFn = w.timeNowFn
	}

	if w.brief {
		currBrief := w.qdiscBrief[w.currIndex]
		if currBrief == nil {
			currBrief = utils.NewQdiscBrief()
			w.qdiscBrief[w.currIndex] = currBrief
		}
		if err := w.qdiscBriefUpdate(currBrief); err != nil {
			return err
		}
	} else {
		currDump := w.qdiscDump[w.currIndex]
		if currDump == nil {
			if prevDump := w.qdiscDump[1-w.currIndex]; prevDump != nil {
				currDump = prevDump.Clone()
			} else {
				currDump = tcnl.NewQdiscDump()
				currDump.FilterIfIndex = w.filterIfIndex
			}
			w.qdiscDump[w.currIndex] = currDump
		}
		if err := w.qdiscUpdate(currDump); err != nil {
			return err
		}
	}

	if w.netDev {
		currNetDev := w.netDevStat[w.currIndex]
		if currNetDev == nil {
			if prevNetDev := w.netDevStat[1-w.currIndex]; prevNetDev != nil {
				currNetDev = prevNetDev.Clone(false)
			} else {
				currNetDev = procfs.NewNetDev(w.procfsRoot)
			}
			w.netDevStat[w.currIndex] = currNetDev
		}
		if err := currNetDev.Parse(); err != nil {
			return err
		}
	}

	w.sampleTs[w.currIndex] = timeNowFn()

	buf := watchBufPool.GetBuf()
	w.generateReport(buf)
	if buf.Len() > 0 {
		if _, err := w.out.Write(buf.Bytes()); err != nil {
			watchBufPool.ReturnBuf(buf)
			return err
		}
	}
	watchBufPool.ReturnBuf(buf)
	return nil
}

func (w *Watch) generateReport(buf *bytes.Buffer) {
	currIndex := w.currIndex
	w.currIndex = 1 - currIndex
	currTs, prevTs := w.sampleTs[currIndex], w.sampleTs[1-currIndex]

	// All rates are deltas, a previous sample is required:
	if w.brief {
		if w.qdiscBrief[1-currIndex] == nil {
			return
		}
	} else if w.qdiscDump[1-currIndex] == nil {
		return
	}

	deltaSec := currTs.Sub(prevTs).Seconds()
	if deltaSec <= 0 {
		deltaSec = w.interval.Seconds()
	}

	fmt.Fprintf(
		buf, "-- %s up %s interval %s --\n",
		currTs.Format("2006-01-02 15:04:05.000"),
		currTs.Sub(utils.OSBtime).Round(time.Second),
		w.interval,
	)
	if w.brief {
		w.reportBrief(buf, currIndex, deltaSec)
	} else {
		w.reportQdiscs(buf, currIndex, deltaSec)
	}
	if w.netDev && w.netDevStat[1-currIndex] != nil {
		w.reportNetDev(buf, currIndex, deltaSec)
	}
	buf.WriteByte('\n')
}

func formatRate(delta uint64, deltaSec, factor float64) string {
	return strconv.FormatFloat(
		float64(delta)/deltaSec*factor, 'f', WATCH_RATE_PREC, 64,
	)
}

func (w *Watch) reportQdiscs(buf *bytes.Buffer, currIndex int, deltaSec float64) {
	currDump, prevDump := w.qdiscDump[currIndex], w.qdiscDump[1-currIndex]

	p := qdisc.NewPrinter(qdisc.PRINT_TEXT)
	for _, qiKey := range sortedQdiscKeys(currDump) {
		qi := currDump.Info[qiKey]
		prevQi := prevDump.Info[qiKey]
		if prevQi == nil {
			// New since the previous sample, no deltas yet:
			continue
		}

		parent := "root"
		if qi.Parent != tcnl.TC_H_ROOT {
			parent = "parent " + tcnl.FormatClassID(qi.Parent)
		}
		fmt.Fprintf(
			buf, "qdisc %s %s dev %s %s\n",
			qi.Kind, tcnl.FormatQdiscHandle(qi.Handle), qi.IfName, parent,
		)
		fmt.Fprintf(
			buf, "  rate %skbps %spps drops %d requeues %d overlimits %d backlog %db %dp\n",
			formatRate(qi.Uint64[tcnl.QDISC_STAT_BYTES]-prevQi.Uint64[tcnl.QDISC_STAT_BYTES], deltaSec, WATCH_BYTES_RATE_FACTOR),
			formatRate(uint64(qi.Uint32[tcnl.QDISC_STAT_PACKETS]-prevQi.Uint32[tcnl.QDISC_STAT_PACKETS]), deltaSec, 1),
			qi.Uint32[tcnl.QDISC_STAT_DROPS]-prevQi.Uint32[tcnl.QDISC_STAT_DROPS],
			qi.Uint32[tcnl.QDISC_STAT_REQUEUES]-prevQi.Uint32[tcnl.QDISC_STAT_REQUEUES],
			qi.Uint32[tcnl.QDISC_STAT_OVERLIMITS]-prevQi.Uint32[tcnl.QDISC_STAT_OVERLIMITS],
			qi.Uint32[tcnl.QDISC_STAT_BACKLOG],
			qi.Uint32[tcnl.QDISC_STAT_QLEN],
		)

		if a := qdisc.Lookup(qi.Kind); a != nil && qi.XStats != nil {
			p.Reset()
			if err := a.FormatXStats(p, qi.XStats); err == nil && p.Len() > 0 {
				buf.Write(p.Bytes())
				buf.WriteByte('\n')
			}
		}
	}
}

func (w *Watch) reportBrief(buf *bytes.Buffer, currIndex int, deltaSec float64) {
	currBrief, prevBrief := w.qdiscBrief[currIndex], w.qdiscBrief[1-currIndex]

	ifNames := make([]string, 0, len(currBrief.Info))
	for ifName := range currBrief.Info {
		if w.devName != "" && ifName != w.devName {
			continue
		}
		ifNames = append(ifNames, ifName)
	}
	sort.Strings(ifNames)

	fmt.Fprintf(
		buf, "%-12s %-10s %10s %8s %8s %8s %10s %6s %10s\n",
		"IF", "KIND", "KBPS", "PKT", "DROPS", "REQUEUES", "OVERLIMIT", "QLEN", "BACKLOG",
	)
	for _, ifName := range ifNames {
		briefIf := currBrief.Info[ifName]
		prevIf := prevBrief.Info[ifName]
		if prevIf == nil {
			continue
		}
		fmt.Fprintf(
			buf, "%-12s %-10s %10s %8d %8d %8d %10d %6d %10d\n",
			ifName, briefIf.Kind,
			formatRate(briefIf.Uint64[utils.QDISC_BRIEF_BYTES]-prevIf.Uint64[utils.QDISC_BRIEF_BYTES], deltaSec, WATCH_BYTES_RATE_FACTOR),
			briefIf.Uint32[utils.QDISC_BRIEF_PACKETS]-prevIf.Uint32[utils.QDISC_BRIEF_PACKETS],
			briefIf.Uint32[utils.QDISC_BRIEF_DROPS]-prevIf.Uint32[utils.QDISC_BRIEF_DROPS],
			briefIf.Uint32[utils.QDISC_BRIEF_REQUEUES]-prevIf.Uint32[utils.QDISC_BRIEF_REQUEUES],
			briefIf.Uint32[utils.QDISC_BRIEF_OVERLIMITS]-prevIf.Uint32[utils.QDISC_BRIEF_OVERLIMITS],
			briefIf.Uint32[utils.QDISC_BRIEF_QLEN],
			briefIf.Uint32[utils.QDISC_BRIEF_BACKLOG],
		)
	}
}

func (w *Watch) reportNetDev(buf *bytes.Buffer, currIndex int, deltaSec float64) {
	currNetDev, prevNetDev := w.netDevStat[currIndex], w.netDevStat[1-currIndex]

	devs := make([]string, 0, len(currNetDev.DevStats))
	for dev := range currNetDev.DevStats {
		if w.devName != "" && dev != w.devName {
			continue
		}
		devs = append(devs, dev)
	}
	sort.Strings(devs)

	for _, dev := range devs {
		prevStats := prevNetDev.DevStats[dev]
		if prevStats == nil {
			continue
		}
		currStats := currNetDev.DevStats[dev]
		fmt.Fprintf(
			buf, "netdev %s rx %skbps %dpkt tx %skbps %dpkt\n",
			dev,
			formatRate(currStats[procfs.NET_DEV_RX_BYTES]-prevStats[procfs.NET_DEV_RX_BYTES], deltaSec, WATCH_BYTES_RATE_FACTOR),
			currStats[procfs.NET_DEV_RX_PACKETS]-prevStats[procfs.NET_DEV_RX_PACKETS],
			formatRate(currStats[procfs.NET_DEV_TX_BYTES]-prevStats[procfs.NET_DEV_TX_BYTES], deltaSec, WATCH_BYTES_RATE_FACTOR),
			currStats[procfs.NET_DEV_TX_PACKETS]-prevStats[procfs.NET_DEV_TX_PACKETS],
		)
	}
}
