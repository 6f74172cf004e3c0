// Package config loads, validates, and watches the fabric's YAML
// configuration.
//
// Loading is strict: unknown fields are rejected, defaults are applied
// before validation, and validation errors name the offending field
// path. The core packages take their configuration as plain Go structs;
// only this package and the CLI touch files.
//
//	cfg, err := config.LoadConfig("rosetta.yaml")
//
// Hot reload is available through Watcher, which debounces file events
// and survives atomic editor saves:
//
//	w, _ := config.NewWatcher("rosetta.yaml", nil)
//	go w.Watch(ctx, func() error { return rebuild() })
package config
