package host

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/davidmdm/x/xerr"

	"github.com/relaydb/wasmlib/internal"
	"github.com/relaydb/wasmlib/internal/oci"
)

// Load fetches a guest module's bytes from a local path, an http(s) url, or
// an oci:// artifact reference. Gzipped content is transparently decompressed
// and the result is validated as a wasm binary before being returned.
func Load(ctx context.Context, path string, insecure bool) ([]byte, error) {
	defer internal.DebugTimer(ctx, "load wasm")()

	wasm, err := load(ctx, path, insecure)
	if err != nil {
		return nil, err
	}

	if err := ValidatePreamble(wasm); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wasm, nil
}

func load(ctx context.Context, path string, insecure bool) (result []byte, err error) {
	uri, _ := url.Parse(path)
	if uri == nil || uri.Scheme == "" {
		wasm, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load file: %s: %w", path, err)
		}
		return wasm, nil
	}

	if !slices.Contains([]string{"http", "https", "oci"}, uri.Scheme) {
		return nil, fmt.Errorf("unsupported protocol: %s - http(s) and oci supported only", uri.Scheme)
	}

	if uri.Scheme == "oci" {
		return oci.PullArtifact(ctx, oci.PullArtifactParams{
			URL:      uri.String(),
			Insecure: insecure,
		})
	}

	req, err := http.NewRequestWithContext(ctx, "GET", uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	defer func() {
		err = xerr.MultiErrFrom("", err, resp.Body.Close())
	}()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected statuscode fetching %s: %d", uri.String(), resp.StatusCode)
	}

	if resp.Header.Get("Content-Encoding") == "gzip" || strings.HasSuffix(req.URL.Path, ".gz") {
		return io.ReadAll(gzipReader(resp.Body))
	}

	return io.ReadAll(resp.Body)
}

func loadFile(path string) (result []byte, err error) {
	if filepath.Ext(path) != ".gz" {
		return os.ReadFile(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = xerr.MultiErrFrom("", err, file.Close())
	}()

	return io.ReadAll(gzipReader(file))
}

func gzipReader(r io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		gr, err := gzip.NewReader(r)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(pw, gr); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(gr.Close())
	}()

	return pr
}

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D} // "\0asm"

// ValidatePreamble checks that data carries the wasm magic and a supported
// binary version before anything attempts to compile it.
func ValidatePreamble(data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[:4], wasmMagic) {
		return errors.New("invalid wasm file")
	}
	if binary.LittleEndian.Uint32(data[4:8]) != 1 {
		return errors.New("unsupported wasm version")
	}
	return nil
}
