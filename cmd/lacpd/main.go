// Command lacpd runs the link-aggregation control daemon.
//
// usage: lacpd [OPTIONS] [STORE]
//
// STORE is a TOML port-configuration file to watch; without it the daemon
// runs on an in-memory store.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vinayprograms/lacpd/config"
	"github.com/vinayprograms/lacpd/daemon"
	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/logging"
)

// Exit statuses. Worker startup failure is distinguished so supervisors
// can tell a resource-exhaustion condition from ordinary failures.
const (
	exitSuccess     = 0
	exitFailure     = 1
	exitWorkerStart = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lacpd", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file (default: search lacpd.toml locations)")
	ctlPath := fs.String("unixctl", "", "override default control socket path")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitSuccess
		}
		return exitFailure
	}

	rest := fs.Args()
	if len(rest) > 1 {
		fmt.Fprintln(os.Stderr, "lacpd: at most one non-option argument accepted; use --help for usage")
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lacpd: %v\n", err)
		return exitFailure
	}
	if len(rest) == 1 {
		cfg.StorePath = rest[0]
	}
	if *ctlPath != "" {
		cfg.ControlSocket = *ctlPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("startup_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return exitStatus(err)
	}

	if err := d.Run(); err != nil {
		logger.Error("daemon_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return exitStatus(err)
	}
	return exitSuccess
}

// exitStatus maps a fatal error onto the process exit status.
func exitStatus(err error) int {
	if errors.IsCode(err, errors.CodeWorkerStart) {
		return exitWorkerStart
	}
	return exitFailure
}

// usage prints command help.
func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), `lacpd: link aggregation daemon
usage: lacpd [OPTIONS] [STORE]
where STORE is a TOML port-configuration file the daemon watches
      (default: in-memory store).

Options:
`)
	fs.PrintDefaults()
}
