// Launcher entrypoint for the handheld: decides recovery at power-on,
// brings up the hardware and runs the menu until an app is armed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/m5lab/launcher/cmd/launcher/subcmd"
	"github.com/m5lab/launcher/internal/state"
	"github.com/m5lab/launcher/log2"
)

// BuildVersion set by ldflags -X main.BuildVersion
var BuildVersion string = "unknown"

var modules = []subcmd.Mod{
	{Name: "run", Main: runMain},
	{Name: "install", Main: installMain},
	{Name: "recover", Main: recoverMain},
	{Name: "version", Main: versionMain},
}

func main() {
	flagConfig := flag.String("config", "launcher.hcl", "")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "command line error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	log := log2.NewStderr(log2.LInfo)
	if subcmd.SdNotify("STATUS=starting") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion
	cfg := state.MustReadConfigFile(*flagConfig, log)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		g.Log.Infof("signal, stopping")
		g.Stop()
	}()

	if err := mod.Main(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

func versionMain(ctx context.Context, cfg *state.Config) error {
	fmt.Printf("launcher %s\n", BuildVersion)
	return nil
}
