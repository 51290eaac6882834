package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-kit/kit/log"
	"github.com/insights-client/insights-client/pkg/insights"
	"github.com/kolide/kit/logutil"
	"github.com/kolide/kit/version"
	"github.com/pkg/errors"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var subcommands = map[string]command{
	"register":        runRegister,
	"unregister":      runUnregister,
	"status":          runStatus,
	"test-connection": runTestConnection,
	"upload":          runUpload,
	"branch-info":     runBranchInfo,
}

func main() {
	var logger log.Logger
	logger = log.NewJSONLogger(os.Stderr) // only used until options are parsed.

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(exitUsage)
	}

	name := os.Args[1]
	if name == "version" || name == "--version" {
		version.PrintFull()
		os.Exit(exitOK)
	}

	cmd, ok := subcommands[name]
	if !ok {
		usage(os.Stderr)
		os.Exit(exitUsage)
	}

	opts, err := insights.ParseOptions(name, os.Args[2:])
	if insights.IsInfoCmd(err) {
		os.Exit(exitOK)
	}
	if err != nil {
		logutil.Fatal(logger, "err", errors.Wrap(err, "parsing options"))
	}

	os.Exit(runCommand(name, cmd, opts, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	names := make([]string, 0, len(subcommands))
	for name := range subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "insights-client (version %s)\n", version.Version().Version)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Usage: insights-client <command> [--option=value ...]\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintf(w, "  version\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Run insights-client <command> --help for the options of a command.\n")
}
