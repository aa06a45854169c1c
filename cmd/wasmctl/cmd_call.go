package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/relaydb/wasmlib/internal/wasi"
	"github.com/relaydb/wasmlib/pkg/host"
	"github.com/relaydb/wasmlib/pkg/wire"
)

type CallParams struct {
	Settings
	Path  string
	Route string
	ID    string
	Claim string
	Body  string
	Stdin io.Reader
}

func GetCallParams(settings Settings, args []string) (*CallParams, error) {
	flagset := flag.NewFlagSet("call", flag.ExitOnError)
	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), "Usage: wasmctl call [flags] <module path | url | oci ref> <route>")
		flagset.PrintDefaults()
	}

	params := CallParams{Settings: settings}

	flagset.BoolVar(&params.Insecure, "insecure", settings.Insecure, "allow insecure registry connections")
	flagset.StringVar(&params.ID, "id", "", "transaction id (defaults to a timestamp-derived id)")
	flagset.StringVar(&params.Claim, "claim", "", "transaction authorization claim document")
	flagset.StringVar(&params.Body, "body", "", "request body document (defaults to stdin when piped)")

	if err := flagset.Parse(args); err != nil {
		return nil, err
	}
	if flagset.NArg() != 2 {
		flagset.Usage()
		return nil, fmt.Errorf("expected a module reference and a route path")
	}

	params.Path = flagset.Arg(0)
	params.Route = flagset.Arg(1)

	if params.Body == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		params.Stdin = os.Stdin
	}

	return &params, nil
}

func Call(ctx context.Context, params CallParams) error {
	body := []byte(params.Body)
	if params.Stdin != nil {
		data, err := io.ReadAll(params.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read body from stdin: %w", err)
		}
		body = data
	}

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

	now := time.Now()

	header := wire.Header{
		ID:        params.ID,
		Timestamp: now.UnixNano(),
	}
	if header.ID == "" {
		header.ID = fmt.Sprintf("wasmctl-%d", now.UnixNano())
	}
	if params.Claim != "" {
		header.Claim = json.RawMessage(params.Claim)
	}

	response, err := client.Call(ctx, params.Route, header, body)
	if err != nil {
		return err
	}

	fmt.Println(string(response))

	return nil
}
