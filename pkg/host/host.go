// Package host is the public API for loading guest modules and calling their
// routes. It treats the boundary exactly as the protocol defines it: every
// call returns a byte buffer, and failure is visible only as an error payload
// document inside that buffer, which this package surfaces as a RouteError.
package host

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/relaydb/wasmlib/internal"
	"github.com/relaydb/wasmlib/internal/wasi"
	"github.com/relaydb/wasmlib/pkg/wire"
)

// RouteError is a failure reported by the guest through an error payload.
// The call itself succeeded at the ABI level.
type RouteError struct {
	Route   string
	Message string
}

func (err RouteError) Error() string {
	return fmt.Sprintf("route %s failed: %s", err.Route, err.Message)
}

// Client drives a single guest instance: it reads the manifest once at load
// time and invokes routes by logical path. Calls into the underlying instance
// are serialized; use one client per concurrent caller.
type Client struct {
	instance *wasi.Instance
	manifest wire.Manifest
}

type ClientParams struct {
	Module wasi.Module
	Name   string
	Env    map[string]string
}

// NewClient instantiates the module and loads its manifest. A module whose
// schema carries an invalid semantic version is rejected up front, before any
// route can be called.
func NewClient(ctx context.Context, params ClientParams) (*Client, error) {
	instance, err := params.Module.Instantiate(ctx, wasi.InstantiateParams{
		Name: params.Name,
		Env:  params.Env,
	})
	if err != nil {
		return nil, err
	}

	data, err := instance.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read module manifest: %w", err)
	}

	manifest, err := wire.DecodeManifest(data)
	if err != nil {
		return nil, err
	}

	if version := manifest.Schema.Version; !semver.IsValid("v" + version) {
		return nil, fmt.Errorf("module %s declares invalid version %q", manifest.Schema.ID, version)
	}

	return &Client{instance: instance, manifest: manifest}, nil
}

// Manifest returns the module's manifest as read at load time. The route list
// is immutable while the module is resident.
func (client *Client) Manifest() wire.Manifest {
	return client.manifest
}

// Call invokes the route registered under path. The header is required by the
// protocol; the body may be nil. Error payloads come back as RouteError.
func (client *Client) Call(ctx context.Context, path string, header wire.Header, body []byte) ([]byte, error) {
	defer internal.DebugTimer(ctx, fmt.Sprintf("call route %s", path))()

	export, ok := client.manifest.Route(path)
	if !ok {
		return nil, fmt.Errorf("module %s does not expose route %s", client.manifest.Schema.ID, path)
	}

	encodedHeader, err := wire.EncodeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction header: %w", err)
	}

	response, err := client.instance.Call(ctx, export, encodedHeader, body)
	if err != nil {
		return nil, err
	}

	if message, ok := wire.ErrorMessage(response); ok {
		return nil, RouteError{Route: path, Message: message}
	}
	return response, nil
}

func (client *Client) Close(ctx context.Context) error {
	return client.instance.Close(ctx)
}
