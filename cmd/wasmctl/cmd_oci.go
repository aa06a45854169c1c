package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/relaydb/wasmlib/internal/oci"
	"github.com/relaydb/wasmlib/pkg/host"
)

type PushParams struct {
	Settings
	Path string
	URL  string
}

func GetPushParams(settings Settings, args []string) (*PushParams, error) {
	flagset := flag.NewFlagSet("push", flag.ExitOnError)
	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), "Usage: wasmctl push [flags] <module path> <oci ref>")
		flagset.PrintDefaults()
	}

	params := PushParams{Settings: settings}
	flagset.BoolVar(&params.Insecure, "insecure", settings.Insecure, "allow insecure registry connections")

	if err := flagset.Parse(args); err != nil {
		return nil, err
	}
	if flagset.NArg() != 2 {
		flagset.Usage()
		return nil, fmt.Errorf("expected a module path and an oci reference")
	}

	params.Path = flagset.Arg(0)
	params.URL = flagset.Arg(1)
	return &params, nil
}

func Push(ctx context.Context, params PushParams) error {
	wasm, err := host.Load(ctx, params.Path, params.Insecure)
	if err != nil {
		return err
	}

	digestURL, err := oci.PushArtifact(ctx, oci.PushArtifactParams{
		URL:      params.URL,
		Data:     wasm,
		Insecure: params.Insecure,
	})
	if err != nil {
		return err
	}

	fmt.Println(digestURL)
	return nil
}

type PullParams struct {
	Settings
	URL string
	Out string
}

func GetPullParams(settings Settings, args []string) (*PullParams, error) {
	flagset := flag.NewFlagSet("pull", flag.ExitOnError)
	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), "Usage: wasmctl pull [flags] <oci ref>")
		flagset.PrintDefaults()
	}

	params := PullParams{Settings: settings}
	flagset.BoolVar(&params.Insecure, "insecure", settings.Insecure, "allow insecure registry connections")
	flagset.StringVar(&params.Out, "out", "module.wasm", "output file path")

	if err := flagset.Parse(args); err != nil {
		return nil, err
	}
	if flagset.NArg() != 1 {
		flagset.Usage()
		return nil, fmt.Errorf("expected an oci reference")
	}

	params.URL = flagset.Arg(0)
	return &params, nil
}

func Pull(ctx context.Context, params PullParams) error {
	wasm, err := oci.PullArtifact(ctx, oci.PullArtifactParams{
		URL:      params.URL,
		Insecure: params.Insecure,
	})
	if err != nil {
		return err
	}

	if err := host.ValidatePreamble(wasm); err != nil {
		return fmt.Errorf("%s: %w", params.URL, err)
	}

	return os.WriteFile(params.Out, wasm, 0o644)
}
