package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/relaydb/wasmlib/internal/wasi"
	"github.com/relaydb/wasmlib/pkg/host"
)

type ManifestParams struct {
	Settings
	Path string
}

func GetManifestParams(settings Settings, args []string) (*ManifestParams, error) {
	flagset := flag.NewFlagSet("manifest", flag.ExitOnError)
	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), "Usage: wasmctl manifest <module path | url | oci ref>")
		flagset.PrintDefaults()
	}

	flagset.BoolVar(&settings.Insecure, "insecure", settings.Insecure, "allow insecure registry connections")

	if err := flagset.Parse(args); err != nil {
		return nil, err
	}
	if flagset.NArg() != 1 {
		flagset.Usage()
		return nil, fmt.Errorf("expected exactly one module reference")
	}

	return &ManifestParams{Settings: settings, Path: flagset.Arg(0)}, nil
}

func Manifest(ctx context.Context, params ManifestParams) error {
	wasm, err := host.Load(ctx, params.Path, params.Insecure)
	if err != nil {
		return err
	}

	mod, err := wasi.Compile(ctx, wasi.CompileParams{Wasm: wasm, CacheDir: params.CacheDir})
	if err != nil {
		return err
	}
	defer func() { _ = mod.Close(ctx) }()

	client, err := host.NewClient(ctx, host.ClientParams{Module: mod, Name: params.Path})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	manifest := client.Manifest()

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)

	tbl.AppendRow(table.Row{"id", manifest.Schema.ID})
	tbl.AppendRow(table.Row{"version", manifest.Schema.Version})
	tbl.AppendRow(table.Row{"size", units.HumanSize(float64(len(wasm)))})
	for _, dep := range manifest.Schema.Dependencies {
		tbl.AppendRow(table.Row{"dependency", dep})
	}

	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"route", "export"})
	tbl.AppendSeparator()
	for _, route := range manifest.Routes {
		tbl.AppendRow(table.Row{route.Path, route.Export})
	}

	fmt.Println(tbl.Render())

	return nil
}
