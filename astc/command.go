// Command dispatch, in the tc style: OBJECT COMMAND [ PARAM VALUE ... ]

// The objects (qdisc, watch, psched) parse their command line by walking the
// tokens left to right, keyword then value, the same grammar the discipline
// option adapters use for their own parameters. Flags proper (-config, -json,
// -log-*) are handled by the flag package before the walk starts.

package astc

import (
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"os"

	"github.com/docker/go-units"

	"github.com/bgp59/aifo-stfq-tc/qdisc"
	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

var commandLog = NewCompLogger("command")

// Per invocation by nature, so a flag rather than a config parameter:
var commandJsonArg = flag.Bool(
	"json",
	false,
	FormatFlagUsage(
		`Render the output as JSON, one object per qdisc, instead of text`,
	),
)

type Command struct {
	// Rendered objects and statistics:
	Out io.Writer
	// Usage text; errors go to the caller as error returns:
	ErrOut io.Writer
	// Render JSON instead of text:
	Json bool

	// From config:
	procfsRoot  string
	watchConfig *WatchConfig

	// The following are needed for testing only. Left to their default
	// values, the usual objects will be used.
	ifIndexFn     func(name string) (int32, error)
	qdiscUpdateFn func(qd *tcnl.QdiscDump) error
	qdiscModifyFn func(op int, req *tcnl.QdiscRequest) error
}

func NewCommand(cfg any) (*Command, error) {
	var astcCfg *AstcConfig

	switch cfg := cfg.(type) {
	case *AstcConfig:
		astcCfg = cfg
	case nil:
		astcCfg = DefaultAstcConfig()
	default:
		return nil, fmt.Errorf("NewCommand: %T invalid config type", cfg)
	}
	if astcCfg == nil {
		astcCfg = DefaultAstcConfig()
	}

	netlinkCfg := astcCfg.NetlinkConfig
	if netlinkCfg == nil {
		netlinkCfg = DefaultNetlinkConfig()
	}
	if netlinkCfg.ReceiveBufferSize != "" {
		size, err := units.RAMInBytes(netlinkCfg.ReceiveBufferSize)
		if err != nil {
			return nil, fmt.Errorf(
				"NewCommand: invalid receive_buffer_size %q: %v",
				netlinkCfg.ReceiveBufferSize, err,
			)
		}
		if size < 0 || size > math.MaxInt32 {
			return nil, fmt.Errorf(
				"NewCommand: receive_buffer_size %q out of range",
				netlinkCfg.ReceiveBufferSize,
			)
		}
		tcnl.ReceiveBufferSize = int(size)
	}

	procfsRoot := astcCfg.ProcfsRoot
	if procfsRoot == "" {
		procfsRoot = DEFAULT_PROCFS_ROOT
	}
	watchCfg := astcCfg.WatchConfig
	if watchCfg == nil {
		watchCfg = DefaultWatchConfig()
	}

	return &Command{
		Out:         os.Stdout,
		ErrOut:      os.Stderr,
		Json:        *commandJsonArg,
		procfsRoot:  procfsRoot,
		watchConfig: watchCfg,
	}, nil
}

func (cmd *Command) usage() {
	fmt.Fprintf(cmd.ErrOut, `Usage: %s [ FLAGS ] OBJECT { COMMAND | help }
where  OBJECT := { qdisc | watch | psched }
       FLAGS := { -config FILE | -json | -log-level LEVEL | -log-json-format }
`, ASTC_APP_NAME)
}

// Run executes one command line, tokens past the parsed flags. The usage
// text, when called for (help or a parse error), goes to ErrOut; it is the
// caller's job to report the returned error. qdisc.ErrHelp marks an explicit
// help request: no error to report but a non success result all the same.
func (cmd *Command) Run(cmdArgs []string) error {
	args := qdisc.NewArgs(cmdArgs)
	if !args.More() {
		cmd.usage()
		return nil
	}
	obj := args.Next()
	switch obj {
	case "qdisc":
		return cmd.runQdisc(args)
	case "watch":
		return cmd.runWatch(args)
	case "psched":
		return cmd.runPsched(args)
	case "help":
		cmd.usage()
		return nil
	default:
		cmd.usage()
		return fmt.Errorf(`unknown object %q, try "help"`, obj)
	}
}

func (cmd *Command) printerMode() int {
	if cmd.Json {
		return qdisc.PRINT_JSON
	}
	return qdisc.PRINT_TEXT
}

func (cmd *Command) ifIndex(name string) (int32, error) {
	if cmd.ifIndexFn != nil {
		return cmd.ifIndexFn(name)
	}
	ifa, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("cannot find device %q", name)
	}
	return int32(ifa.Index), nil
}

func (cmd *Command) qdiscUpdate(qd *tcnl.QdiscDump) error {
	if cmd.qdiscUpdateFn != nil {
		return cmd.qdiscUpdateFn(qd)
	}
	return qd.Update()
}

func (cmd *Command) modifyQdisc(op int, req *tcnl.QdiscRequest) error {
	if cmd.qdiscModifyFn != nil {
		return cmd.qdiscModifyFn(op, req)
	}
	return tcnl.QdiscModify(op, req)
}
