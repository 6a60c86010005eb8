// psched object: packet scheduler clock parameters.

package astc

import (
	"fmt"

	"github.com/bgp59/aifo-stfq-tc/internal/utils"
	"github.com/bgp59/aifo-stfq-tc/procfs"
	"github.com/bgp59/aifo-stfq-tc/qdisc"
)

func (cmd *Command) pschedUsage() {
	fmt.Fprintf(cmd.ErrOut, `Usage: %s psched
Show the packet scheduler clock parameters, from PROCFS/net/psched.
`, ASTC_APP_NAME)
}

func (cmd *Command) runPsched(args *qdisc.Args) error {
	if args.More() {
		arg := args.Next()
		cmd.pschedUsage()
		if arg == "help" {
			return qdisc.ErrHelp
		}
		return &qdisc.UnknownParamError{Kind: "psched", Param: arg}
	}

	psched := procfs.NewPsched(cmd.procfsRoot)
	if err := psched.Parse(); err != nil {
		return err
	}

	p := qdisc.NewPrinter(cmd.printerMode())
	p.OpenObject("")
	p.Float("tick_in_usec", "tick_in_usec %.3f ", psched.TickInUsec)
	p.Float("clock_factor", "clock_factor %.3f ", psched.ClockFactor)
	p.Uint("clock_res", "clock_res %d ", uint64(psched.Values[procfs.PSCHED_CLOCK_RES]))
	p.Uint("hrtimer_res", "hrtimer_res %d ", uint64(psched.Values[procfs.PSCHED_HRTIMER_RES]))
	p.Uint("user_hz", "user_hz %d", uint64(utils.LinuxClktck))
	p.CloseObject()
	p.Text("\n")
	if _, err := cmd.Out.Write(p.Bytes()); err != nil {
		return err
	}
	if cmd.Json {
		fmt.Fprintln(cmd.Out)
	}
	return nil
}
