package main

import (
	"github.com/davidmdm/conf"
)

// Settings are environment-backed so that CI and scripts can configure
// wasmctl without threading flags through every invocation.
type Settings struct {
	Debug    *bool
	CacheDir string
	Insecure bool
}

func LoadSettings() (*Settings, error) {
	settings := Settings{Debug: new(bool)}

	conf.Var(conf.Environ, &settings.CacheDir, "WASMCTL_CACHE_DIR")
	conf.Var(conf.Environ, &settings.Insecure, "WASMCTL_INSECURE")

	err := conf.Environ.Parse()
	return &settings, err
}
