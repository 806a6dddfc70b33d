// Command fdkrecon runs the FDK cone-beam reconstruction engine end to
// end: load geometry and scan parameters, plan the volume, dispatch a
// pipeline per accelerator against the shared task queue, and write
// the reconstructed volume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenct/fdkrecon/cmn/config"
	"github.com/lumenct/fdkrecon/cmn/nlog"
)

var (
	configPath string
	verbosity  int
	statusAddr string
)

func main() {
	defer handleCrash()

	root := &cobra.Command{
		Use:     "fdkrecon",
		Short:   "Cone-beam CT reconstruction engine (FDK)",
		Version: version(),
		RunE:    run,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the run's YAML config file (required)")
	root.PersistentFlags().IntVar(&verbosity, "v", 0, "module verbosity level")
	root.PersistentFlags().StringVar(&statusAddr, "status-addr", "", "address for the status/metrics HTTP endpoint (empty disables it)")
	_ = root.MarkPersistentFlagRequired("config")

	if err := root.Execute(); err != nil {
		nlog.Errorln(err)
		os.Exit(exitRuntimeFailure)
	}
}

const (
	exitOK              = 0
	exitConstruction    = 1
	exitRuntimeFailure  = 2
	exitUnhandledSignal = 3
)

func version() string { return "fdkrecon dev" }

func run(cmd *cobra.Command, _ []string) error {
	nlog.SetVerbosity("", verbosity)

	cfg, err := config.Load(configPath)
	if err != nil {
		nlog.Errorf("construction failure: %v", err)
		os.Exit(exitConstruction)
	}
	config.Put(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	installSignalHandler(cancel)

	eng, err := newRunFromConfig(cfg, statusAddr)
	if err != nil {
		nlog.Errorf("construction failure: %v", err)
		os.Exit(exitConstruction)
	}

	start := time.Now()
	if err := eng.Execute(ctx); err != nil {
		nlog.Errorf("runtime failure: %v", err)
		os.Exit(exitRuntimeFailure)
	}
	nlog.Infof("run %s completed in %s", eng.RunID(), time.Since(start))
	return nil
}

// installSignalHandler cancels ctx on SIGINT/SIGTERM for an orderly
// shutdown, and dumps a goroutine backtrace before exiting on
// SIGQUIT, producing a backtrace before exiting.
func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		nlog.Warningf("received signal %v, shutting down", sig)
		if sig == syscall.SIGQUIT {
			os.Stderr.Write(debug.Stack())
			os.Exit(exitUnhandledSignal)
		}
		cancel()
	}()
}

func handleCrash() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n%s\n", r, debug.Stack())
		os.Exit(exitUnhandledSignal)
	}
}
