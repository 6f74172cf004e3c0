package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"babel-hq/rosetta/pkg/cli"
)

func TestValidateCommandExists(t *testing.T) {
	if validateCmd == nil {
		t.Fatal("validateCmd is nil")
	}
	if validateCmd.Use != "validate" {
		t.Errorf("validateCmd.Use = %q, want %q", validateCmd.Use, "validate")
	}
	if validateCmd.RunE == nil {
		t.Error("validateCmd.RunE should not be nil")
	}
	if validateCmd.Flags().Lookup("format") == nil {
		t.Error("validateCmd is missing the --format flag")
	}
}

func TestValidateConfigValid(t *testing.T) {
	origFile, origFormat := cfgFile, validateFlags.format
	defer func() { cfgFile, validateFlags.format = origFile, origFormat }()

	path := filepath.Join(t.TempDir(), "rosetta.yaml")
	doc := "backends:\n  - name: solo\n    models:\n      - demo-small\nrouting:\n  strategy: round_robin\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path

	for _, format := range []string{"text", "json"} {
		validateFlags.format = format
		if err := validateConfig(validateCmd, nil); err != nil {
			t.Errorf("validateConfig() with format %s error = %v", format, err)
		}
	}
}

func TestValidateConfigInvalid(t *testing.T) {
	origFile, origFormat := cfgFile, validateFlags.format
	defer func() { cfgFile, validateFlags.format = origFile, origFormat }()

	path := filepath.Join(t.TempDir(), "rosetta.yaml")
	doc := "backends:\n  - name: solo\n    models:\n      - demo-small\nrouting:\n  strategy: warp\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path
	validateFlags.format = "text"

	err := validateConfig(validateCmd, nil)
	if err == nil {
		t.Fatal("validateConfig() accepted an invalid config")
	}
	var cerr *cli.CommandError
	if !errors.As(err, &cerr) {
		t.Errorf("error = %T, want *cli.CommandError", err)
	}
}

func TestValidateConfigMissingFile(t *testing.T) {
	origFile := cfgFile
	defer func() { cfgFile = origFile }()

	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	err := validateConfig(validateCmd, nil)
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %T, want *cli.ConfigError", err)
	}
}

func TestValidateConfigNoFile(t *testing.T) {
	origFile := cfgFile
	defer func() { cfgFile = origFile }()

	cfgFile = ""
	err := validateConfig(validateCmd, nil)
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %T, want *cli.ConfigError", err)
	}
}
