package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/hub75/cmd/hub75/console"
	"github.com/temoto/hub75/cmd/hub75/run"
	"github.com/temoto/hub75/cmd/hub75/subcmd"
	"github.com/temoto/hub75/helpers/cli"
	"github.com/temoto/hub75/internal/state"
	"github.com/temoto/hub75/log2"
	"golang.org/x/sys/unix"
)

var log = log2.NewStderr(log2.LDebug)
var BuildVersion string = "unknown" // set by ldflags -X

var modules = []subcmd.Mod{
	run.Mod,
	console.Mod,
	{Name: "version", Usage: "print build version"},
}

func main() {
	log.SetFlags(log2.LServiceFlags)
	if !subcmd.SdNotify("start") {
		// under systemd timestamps are added by journal
		log.SetFlags(log2.LInteractiveFlags)
	}

	flags := flag.NewFlagSet("hub75", flag.ContinueOnError)
	configPath := flags.String("config", "hub75.hcl", "")
	flags.StringVar(&run.Pattern, "pattern", run.Pattern, "initial pattern for run: NAME [ARGS]")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: hub75 [option] command\n\nCommands:\n")
		subcmd.Usage(flags.Output(), modules)
		fmt.Fprintf(flags.Output(), "\nOptions:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			flags.Usage()
			os.Exit(0)
		}
		log.Fatal(err)
	}

	mod, err := subcmd.Parse(flags.Arg(0), modules)
	if err != nil {
		log.Fatal(err)
	}
	if mod.Main == nil {
		fmt.Printf("hub75 %s\n", BuildVersion)
		return
	}
	if mod.Name == console.Mod.Name && cli.IsTerminal() {
		log.SetFlags(0)
	}

	// scan loop timing suffers from page faults
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		log.Errorf("mlockall err=%v", err)
	}

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion
	config := state.MustReadConfig(log, state.NewOsFullReader(), *configPath)

	if err := mod.Main(ctx, config); err != nil {
		log.Fatalf("%s", errors.ErrorStack(err))
	}
}
