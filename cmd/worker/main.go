package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/chartbridge/chartbridge/bridge"
	"github.com/chartbridge/chartbridge/rcparams"
)

// teardownTimeout is the forced-exit fallback: if graceful teardown wedges,
// the process still has to die.
const teardownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:      "worker",
		Usage:     "chart script worker driven by a controller process",
		ArgsUsage: "[controller-port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "controller-host",
				Usage: "Host the controller's gateway listens on.",
				Value: "127.0.0.1",
			},
			&cli.StringFlag{
				Name:  "rc-file",
				Usage: "TOML file overlaying the plotting defaults.",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cliCtx *cli.Context) error {
	port := bridge.DefaultControllerPort
	if cliCtx.Args().Len() > 0 {
		p, err := strconv.Atoi(cliCtx.Args().First())
		if err != nil {
			return fmt.Errorf("parsing controller port %q: %w", cliCtx.Args().First(), err)
		}
		port = p
	}

	// zap writes to stderr without buffering, so the controller sees
	// diagnostics as they happen.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	workerLog := logger.Named("worker").Sugar()

	rc := rcparams.Defaults()
	rcFile := cliCtx.String("rc-file")
	if rcFile == "" {
		if wd, err := os.Getwd(); err == nil {
			rcFile = rcparams.Locate(wd)
		}
	}
	if rcFile != "" {
		if err := rc.LoadFile(rcFile); err != nil {
			return fmt.Errorf("loading rc params: %w", err)
		}
	}

	session, err := bridge.NewSession(
		bridge.WithLogger(logger),
		bridge.WithRcParams(rc),
	)
	if err != nil {
		return fmt.Errorf("building session: %w", err)
	}

	if err := session.Connect(cliCtx.Context, cliCtx.String("controller-host"), port); err != nil {
		return fmt.Errorf("bootstrapping channel: %w", err)
	}

	// Idle until the controller goes away. Our stdin is a pipe from the
	// controller; it closing is the sole liveness signal.
	if _, err := io.Copy(io.Discard, os.Stdin); err != nil {
		workerLog.Debugf("stdin drain ended with error: %s", err)
	}
	workerLog.Debug("controller disconnected, tearing down")

	time.AfterFunc(teardownTimeout, func() {
		fmt.Fprintln(os.Stderr, "teardown did not finish, forcing exit")
		os.Exit(1)
	})

	session.Teardown()
	return nil
}
