// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config implements the engine's Global configuration map: the
// profile sink filename, frequency-counting toggle, dynamic library search
// path, and verbosity, sourced from CLI flags, environment variables
// (RAMENGINE_*), and an optional YAML config file, in that precedence
// order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys the engine reads out of the Global map.
const (
	KeyProfile          = "profile"
	KeyProfileFrequency = "profile-frequency"
	KeyLibraries        = "libraries"
	KeyLibraryDir       = "library-dir"
	KeyVerbose          = "verbose"
)

const envPrefix = "ramengine"

// Global holds the resolved configuration for one engine run.
type Global struct {
	Profile          string
	ProfileFrequency bool
	Libraries        []string
	LibraryDir       []string
	Verbose          bool
}

// file mirrors Global for YAML decoding; a config file is optional and
// only overrides flags left at their zero value.
type file struct {
	Profile          string   `yaml:"profile"`
	ProfileFrequency bool     `yaml:"profile-frequency"`
	Libraries        []string `yaml:"libraries"`
	LibraryDir       []string `yaml:"library-dir"`
	Verbose          bool     `yaml:"verbose"`
}

// RegisterFlags attaches the Global config's pflags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().String(KeyProfile, "", "write profile events to this file")
	cmd.Flags().Bool(KeyProfileFrequency, false, "count per-rule invocation frequency")
	cmd.Flags().StringSlice(KeyLibraries, nil, "base names of dynamic libraries to preload")
	cmd.Flags().StringSlice(KeyLibraryDir, nil, "directories searched for dynamic libraries")
	cmd.Flags().Bool(KeyVerbose, false, "enable verbose diagnostic logging")
}

// BindEnv binds every flag on cmd to its RAMENGINE_<FLAG> environment
// variable, following the corpus's per-subcommand prefixed viper binding
// so unset flags fall back to the environment before their default.
func BindEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var errs []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		name := strings.ReplaceAll(f.Name, "-", "_")
		if !f.Changed && v.IsSet(name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(name))); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("config: error mapping environment variables to flags: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FromFlags resolves a Global from a cobra command's flags, applying a
// YAML config file (if configPath is non-empty) for any key the flags left
// at the zero value.
func FromFlags(cmd *cobra.Command, configPath string) (*Global, error) {
	g := &Global{}
	var err error
	if g.Profile, err = cmd.Flags().GetString(KeyProfile); err != nil {
		return nil, err
	}
	if g.ProfileFrequency, err = cmd.Flags().GetBool(KeyProfileFrequency); err != nil {
		return nil, err
	}
	if g.Libraries, err = cmd.Flags().GetStringSlice(KeyLibraries); err != nil {
		return nil, err
	}
	if g.LibraryDir, err = cmd.Flags().GetStringSlice(KeyLibraryDir); err != nil {
		return nil, err
	}
	if g.Verbose, err = cmd.Flags().GetBool(KeyVerbose); err != nil {
		return nil, err
	}

	if configPath == "" {
		return g, nil
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	if g.Profile == "" {
		g.Profile = f.Profile
	}
	if !g.ProfileFrequency {
		g.ProfileFrequency = f.ProfileFrequency
	}
	if len(g.Libraries) == 0 {
		g.Libraries = f.Libraries
	}
	if len(g.LibraryDir) == 0 {
		g.LibraryDir = f.LibraryDir
	}
	if !g.Verbose {
		g.Verbose = f.Verbose
	}
	return g, nil
}
