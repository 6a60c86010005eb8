// qdisc object: list, with or without statistics, and modify.

package astc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mdlayher/netlink"

	"github.com/bgp59/aifo-stfq-tc/qdisc"
	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

func (cmd *Command) qdiscUsage() {
	fmt.Fprintf(cmd.ErrOut, `Usage: %[1]s qdisc [ { show | stats } ] [ dev IFNAME ]
       %[1]s qdisc { add | change | replace | delete } dev IFNAME
               { root | parent CLASSID } [ handle HANDLE ] [ KIND [ OPTIONS ] ]
where  KIND := { %[2]s }
Use '%[1]s qdisc add dev IFNAME root KIND help' for KIND specific OPTIONS.
`, ASTC_APP_NAME, strings.Join(qdisc.Kinds(), " | "))
}

func (cmd *Command) runQdisc(args *qdisc.Args) error {
	subCmd := "show"
	if args.More() {
		subCmd = args.Next()
	}
	switch subCmd {
	case "show", "ls", "list":
		return cmd.qdiscShow(args, false)
	case "stats":
		return cmd.qdiscShow(args, true)
	case "add":
		return cmd.qdiscModify(tcnl.QDISC_OP_ADD, args)
	case "change":
		return cmd.qdiscModify(tcnl.QDISC_OP_CHANGE, args)
	case "replace":
		return cmd.qdiscModify(tcnl.QDISC_OP_REPLACE, args)
	case "delete", "del":
		return cmd.qdiscModify(tcnl.QDISC_OP_DEL, args)
	case "help":
		cmd.qdiscUsage()
		return qdisc.ErrHelp
	default:
		cmd.qdiscUsage()
		return fmt.Errorf(`qdisc: unknown command %q, try "help"`, subCmd)
	}
}

func (cmd *Command) qdiscShow(args *qdisc.Args, withStats bool) error {
	what := "qdisc show"
	if withStats {
		what = "qdisc stats"
	}

	devName := ""
	for args.More() {
		arg := args.Next()
		switch arg {
		case "dev":
			val, err := args.NextValue()
			if err != nil {
				return err
			}
			devName = val
		case "help":
			cmd.qdiscUsage()
			return qdisc.ErrHelp
		default:
			cmd.qdiscUsage()
			return &qdisc.UnknownParamError{Kind: what, Param: arg}
		}
	}

	qd := tcnl.NewQdiscDump()
	if devName != "" {
		ifIndex, err := cmd.ifIndex(devName)
		if err != nil {
			return err
		}
		qd.FilterIfIndex = ifIndex
	}
	if err := cmd.qdiscUpdate(qd); err != nil {
		return err
	}

	p := qdisc.NewPrinter(cmd.printerMode())
	p.OpenArray("")
	for _, qiKey := range sortedQdiscKeys(qd) {
		p.OpenObject("")
		renderQdisc(p, qd.Info[qiKey], withStats)
		p.CloseObject()
	}
	p.CloseArray()
	if p.Len() > 0 {
		if _, err := cmd.Out.Write(p.Bytes()); err != nil {
			return err
		}
		if cmd.Json {
			fmt.Fprintln(cmd.Out)
		}
	}
	return nil
}

// Listing order: interface name, then interface index (veth pairs may share
// a name across namespaces), then handle:
func sortedQdiscKeys(qd *tcnl.QdiscDump) []tcnl.QdiscInfoKey {
	qiKeys := make([]tcnl.QdiscInfoKey, 0, len(qd.Info))
	for qiKey := range qd.Info {
		qiKeys = append(qiKeys, qiKey)
	}
	sort.Slice(qiKeys, func(i, j int) bool {
		nameI, nameJ := qd.Info[qiKeys[i]].IfName, qd.Info[qiKeys[j]].IfName
		if nameI != nameJ {
			return nameI < nameJ
		}
		if qiKeys[i].IfIndex != qiKeys[j].IfIndex {
			return qiKeys[i].IfIndex < qiKeys[j].IfIndex
		}
		return qiKeys[i].Handle < qiKeys[j].Handle
	})
	return qiKeys
}

// One qdisc, tc style:
//
//	qdisc KIND HANDLE: dev IFNAME { root | parent CLASSID } [ refcnt N ] OPTIONS
//	 Sent B bytes P pkt (dropped D, overlimits O requeues R)
//	 backlog Bb Qp
//	  KIND specific statistics
//
// the last three lines for stats only. Payloads that cannot be rendered are
// logged and the listing moves on, the remaining qdiscs are still wanted:
func renderQdisc(p *qdisc.Printer, qi *tcnl.QdiscInfo, withStats bool) {
	p.Str("kind", "qdisc %s ", qi.Kind)
	p.Str("handle", "%s ", tcnl.FormatQdiscHandle(qi.Handle))
	p.Str("dev", "dev %s ", qi.IfName)
	if qi.Parent == tcnl.TC_H_ROOT {
		p.Str("parent", "%s ", "root")
	} else {
		p.Str("parent", "parent %s ", tcnl.FormatClassID(qi.Parent))
	}
	if qi.Refcnt > 1 {
		p.Uint("refcnt", "refcnt %d ", uint64(qi.Refcnt))
	}

	a := qdisc.Lookup(qi.Kind)
	if qi.Options != nil {
		if a != nil {
			p.OpenObject("options")
			if err := a.FormatOptions(p, qi.Options); err != nil {
				commandLog.Warnf(
					"dev %s qdisc %s %s: options: %v",
					qi.IfName, qi.Kind, tcnl.FormatQdiscHandle(qi.Handle), err,
				)
			}
			p.CloseObject()
		} else {
			p.Text("[cannot parse qdisc parameters] ")
		}
	}

	if withStats {
		p.Uint("bytes", "\n Sent %d bytes ", qi.Uint64[tcnl.QDISC_STAT_BYTES])
		p.Uint("packets", "%d pkt ", uint64(qi.Uint32[tcnl.QDISC_STAT_PACKETS]))
		p.Uint("drops", "(dropped %d, ", uint64(qi.Uint32[tcnl.QDISC_STAT_DROPS]))
		p.Uint("overlimits", "overlimits %d ", uint64(qi.Uint32[tcnl.QDISC_STAT_OVERLIMITS]))
		p.Uint("requeues", "requeues %d)", uint64(qi.Uint32[tcnl.QDISC_STAT_REQUEUES]))
		p.Uint("backlog", "\n backlog %db ", uint64(qi.Uint32[tcnl.QDISC_STAT_BACKLOG]))
		p.Uint("qlen", "%dp", uint64(qi.Uint32[tcnl.QDISC_STAT_QLEN]))
		if a != nil && qi.XStats != nil {
			p.Text("\n")
			p.OpenObject("xstats")
			if err := a.FormatXStats(p, qi.XStats); err != nil {
				commandLog.Warnf(
					"dev %s qdisc %s %s: xstats: %v",
					qi.IfName, qi.Kind, tcnl.FormatQdiscHandle(qi.Handle), err,
				)
			}
			p.CloseObject()
		}
	}
	p.Text("\n")
}

func (cmd *Command) qdiscModify(op int, args *qdisc.Args) error {
	var (
		devName              string
		parent, handle       uint32
		parentSet, handleSet bool
		kind                 string

		val string
		err error
	)

	// The attach point walk stops at the first token that is not one of its
	// keywords: that token is the qdisc kind and everything after it belongs
	// to the kind's adapter:
	for kind == "" && args.More() {
		arg := args.Next()
		switch arg {
		case "dev":
			devName, err = args.NextValue()
		case "root":
			if parentSet {
				err = fmt.Errorf(`qdisc %s: one attach point only, "root" or "parent CLASSID"`, tcnl.QdiscOpName(op))
			} else {
				parent, parentSet = tcnl.TC_H_ROOT, true
			}
		case "parent":
			if parentSet {
				err = fmt.Errorf(`qdisc %s: one attach point only, "root" or "parent CLASSID"`, tcnl.QdiscOpName(op))
			} else if val, err = args.NextValue(); err == nil {
				parent, err = tcnl.ParseClassID(val)
				parentSet = true
			}
		case "handle":
			if val, err = args.NextValue(); err == nil {
				handle, err = tcnl.ParseQdiscHandle(val)
				handleSet = true
			}
		case "help":
			cmd.qdiscUsage()
			return qdisc.ErrHelp
		default:
			kind = arg
		}
		if err != nil {
			return err
		}
	}

	if devName == "" {
		return fmt.Errorf(`qdisc %s: "dev" is required`, tcnl.QdiscOpName(op))
	}
	if op == tcnl.QDISC_OP_DEL {
		if !parentSet && !handleSet {
			return fmt.Errorf(`qdisc delete: specify "root", "parent CLASSID" or "handle HANDLE"`)
		}
	} else if !parentSet {
		return fmt.Errorf(`qdisc %s: specify "root" or "parent CLASSID"`, tcnl.QdiscOpName(op))
	}

	ae := netlink.NewAttributeEncoder()
	if kind != "" {
		a := qdisc.Lookup(kind)
		if a == nil {
			cmd.qdiscUsage()
			return fmt.Errorf("unknown qdisc kind %q", kind)
		}
		ae.String(tcnl.TCA_KIND, kind)
		if err := a.ParseOptions(args, ae); err != nil {
			if errors.Is(err, qdisc.ErrHelp) {
				a.Explain(cmd.ErrOut)
				return err
			}
			unknownErr := &qdisc.UnknownParamError{}
			if errors.As(err, &unknownErr) {
				a.Explain(cmd.ErrOut)
			}
			return err
		}
	} else if args.More() {
		// Leftover tokens without a kind to take them cannot happen, the walk
		// above consumes everything up to the first non keyword. Guard all the
		// same:
		return fmt.Errorf("qdisc %s: unexpected %q", tcnl.QdiscOpName(op), args.Next())
	}

	ifIndex, err := cmd.ifIndex(devName)
	if err != nil {
		return err
	}
	attrs, err := ae.Encode()
	if err != nil {
		return err
	}

	commandLog.Debugf(
		"qdisc %s dev %s handle %s parent %s kind %q",
		tcnl.QdiscOpName(op), devName,
		tcnl.FormatQdiscHandle(handle), tcnl.FormatClassID(parent), kind,
	)
	return cmd.modifyQdisc(op, &tcnl.QdiscRequest{
		IfIndex: ifIndex,
		Handle:  handle,
		Parent:  parent,
		Attrs:   attrs,
	})
}
