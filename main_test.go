package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"v8-tagdecoder-go/config"
	"v8-tagdecoder-go/render"
)

func parseConfigArgs(t *testing.T, args ...string) (string, string, bool) {
	t.Helper()
	configValueSet = false
	command, err := app.Parse(append([]string{"config"}, args...))
	if err != nil {
		t.Fatal(err)
	}
	if command != configCmd.FullCommand() {
		t.Fatalf("parsed command %q", command)
	}
	return *configName, *configValue, configValueSet
}

func TestConfigCommandEmptyValueResets(t *testing.T) {
	store, err := config.Open(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(config.OffsetProfileDirKey, "/opt/v8/profiles"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := render.New(&out, render.FormatText, false)

	name, value, set := parseConfigArgs(t, config.OffsetProfileDirKey, "")
	if !set {
		t.Fatal("empty value argument not recorded")
	}
	if err := runConfigCommand(store, r, name, value, set); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Get(config.OffsetProfileDirKey); v != "" {
		t.Fatalf("offset_profile_dir = %q after reset", v)
	}
	if out.Len() != 0 {
		t.Fatalf("reset printed the setting: %q", out.String())
	}
}

func TestConfigCommandShowsOneSetting(t *testing.T) {
	store, err := config.Open(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := render.New(&out, render.FormatText, false)

	name, value, set := parseConfigArgs(t, config.MainCageBaseKey)
	if set {
		t.Fatal("omitted value argument recorded as set")
	}
	if err := runConfigCommand(store, r, name, value, set); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "0x0") {
		t.Fatalf("output = %q", out.String())
	}
}
