package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/davidmdm/x/xcontext"

	"github.com/relaydb/wasmlib/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

//go:embed cmd_help.txt
var rootHelp string

func run() error {
	settings, err := LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	flag.BoolVar(settings.Debug, "debug", false, "debug output mode")

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), strings.TrimSpace(rootHelp))
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	flag.Parse()

	ctx, cancel := xcontext.WithSignalCancelation(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx = internal.WithDebugFlag(ctx, settings.Debug)

	if len(flag.Args()) == 0 {
		flag.Usage()
		return fmt.Errorf("no command provided")
	}

	subcmdArgs := flag.Args()[1:]

	switch cmd := flag.Arg(0); cmd {
	case "manifest", "describe":
		{
			params, err := GetManifestParams(*settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Manifest(ctx, *params)
		}
	case "call", "invoke":
		{
			params, err := GetCallParams(*settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Call(ctx, *params)
		}
	case "push":
		{
			params, err := GetPushParams(*settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Push(ctx, *params)
		}
	case "pull":
		{
			params, err := GetPullParams(*settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Pull(ctx, *params)
		}
	case "version":
		{
			return Version()
		}
	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
