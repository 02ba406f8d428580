// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	return cmd
}

func TestFromFlagsDefaults(t *testing.T) {
	cmd := newTestCommand()
	g, err := FromFlags(cmd, "")
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "" || g.Verbose || g.ProfileFrequency {
		t.Errorf("FromFlags defaults = %+v, want all zero", g)
	}
}

func TestFromFlagsReadsSetFlags(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.Flags().Set(KeyProfile, "out.json"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set(KeyVerbose, "true"); err != nil {
		t.Fatal(err)
	}
	g, err := FromFlags(cmd, "")
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "out.json" || !g.Verbose {
		t.Errorf("FromFlags = %+v, want Profile=out.json Verbose=true", g)
	}
}

func TestFromFlagsMergesConfigFileWhenFlagUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yamlContent := "profile: from-file.json\nverbose: true\nlibraries:\n  - libfoo\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTestCommand()
	g, err := FromFlags(cmd, path)
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "from-file.json" {
		t.Errorf("Profile = %q, want from-file.json", g.Profile)
	}
	if !g.Verbose {
		t.Error("Verbose = false, want true from config file")
	}
	if len(g.Libraries) != 1 || g.Libraries[0] != "libfoo" {
		t.Errorf("Libraries = %v, want [libfoo]", g.Libraries)
	}
}

func TestFromFlagsFlagTakesPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("profile: from-file.json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTestCommand()
	if err := cmd.Flags().Set(KeyProfile, "from-flag.json"); err != nil {
		t.Fatal(err)
	}
	g, err := FromFlags(cmd, path)
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "from-flag.json" {
		t.Errorf("Profile = %q, want from-flag.json (flag wins)", g.Profile)
	}
}

func TestFromFlagsMissingConfigFileErrors(t *testing.T) {
	cmd := newTestCommand()
	if _, err := FromFlags(cmd, "/nonexistent/cfg.yaml"); err == nil {
		t.Error("FromFlags with missing config file returned nil error")
	}
}

func TestBindEnvMapsPrefixedVariable(t *testing.T) {
	t.Setenv("RAMENGINE_PROFILE", "env.json")
	cmd := newTestCommand()
	if err := BindEnv(cmd); err != nil {
		t.Fatalf("BindEnv: %v", err)
	}
	g, err := FromFlags(cmd, "")
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "env.json" {
		t.Errorf("Profile = %q, want env.json from RAMENGINE_PROFILE", g.Profile)
	}
}

func TestBindEnvDoesNotOverrideExplicitFlag(t *testing.T) {
	t.Setenv("RAMENGINE_PROFILE", "env.json")
	cmd := newTestCommand()
	if err := cmd.Flags().Set(KeyProfile, "flag.json"); err != nil {
		t.Fatal(err)
	}
	if err := BindEnv(cmd); err != nil {
		t.Fatalf("BindEnv: %v", err)
	}
	g, err := FromFlags(cmd, "")
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if g.Profile != "flag.json" {
		t.Errorf("Profile = %q, want flag.json (explicit flag wins over env)", g.Profile)
	}
}
