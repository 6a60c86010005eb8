// aifo-stfq-tc main

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/bgp59/aifo-stfq-tc/astc"
	"github.com/bgp59/aifo-stfq-tc/qdisc"
)

var mainLog = astc.NewCompLogger("main")

func main() {
	var err error

	// Setup things in the proper order:

	// Parse args:
	flag.Parse()

	// Config; most invocations have no config file and run on built-in
	// defaults:
	astc.GlobalAstcConfig, err = astc.LoadAstcConfigFromArgs()
	if err != nil {
		if errors.Is(err, astc.ErrConfigFileArgNotProvided) {
			astc.GlobalAstcConfig = astc.DefaultAstcConfig()
		} else {
			mainLog.Fatal(err)
		}
	}

	// Logger:
	err = astc.SetLogger(astc.GlobalAstcConfig)
	if err != nil {
		mainLog.Fatal(err)
	}

	// The command proper; errors are reported here, in one place, except for
	// explicit help requests which already printed usage:
	cmd, err := astc.NewCommand(astc.GlobalAstcConfig)
	if err != nil {
		mainLog.Fatal(err)
	}
	if err = cmd.Run(flag.Args()); err != nil {
		if !errors.Is(err, qdisc.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", astc.ASTC_APP_NAME, err)
		}
		os.Exit(1)
	}
}
