// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ramengine/ramengine/config"
	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/engine"
	"github.com/ramengine/ramengine/functor"
	"github.com/ramengine/ramengine/ioregistry"
	"github.com/ramengine/ramengine/profile"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/symbol"
)

func init() {
	var factsDir string
	var numThreads int
	var configFile string

	runCommand := &cobra.Command{
		Use:   "run <program.json>",
		Short: "Evaluate a RAM program to fixpoint",
		Long: `Run loads a JSON-encoded RAM program, constructs an Engine for it, and
evaluates its main statement to fixpoint. IO directives inside the program
that name relative filenames resolve against --facts, if given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, args[0], factsDir, numThreads, configFile)
		},
	}

	runCommand.Flags().StringVar(&factsDir, "facts", "", "directory relative IO filenames resolve against")
	runCommand.Flags().IntVar(&numThreads, "threads", 1, "worker count for Parallel* tuple loops")
	runCommand.Flags().StringVar(&configFile, "config-file", "", "optional YAML config file")
	config.RegisterFlags(runCommand)

	RootCommand.AddCommand(runCommand)
}

func runProgram(cmd *cobra.Command, programPath, factsDir string, numThreads int, configFile string) error {
	if err := config.BindEnv(cmd); err != nil {
		return err
	}
	cfg, err := config.FromFlags(cmd, configFile)
	if err != nil {
		return err
	}
	diag.SetVerbose(cfg.Verbose)

	runID := uuid.NewString()
	log := diag.Global().WithField("run_id", runID)
	log.Infof("starting run of %s", programPath)

	absProgramPath, err := filepath.Abs(programPath)
	if err != nil {
		return errors.Wrapf(err, "run: resolve program path %s", programPath)
	}

	if factsDir != "" {
		if err := os.Chdir(factsDir); err != nil {
			return errors.Wrapf(err, "run: chdir to facts dir %s", factsDir)
		}
	}

	raw, err := os.ReadFile(absProgramPath)
	if err != nil {
		return errors.Wrapf(err, "run: read program %s", programPath)
	}
	var program ram.Program
	if err := json.Unmarshal(raw, &program); err != nil {
		return errors.Wrapf(err, "run: parse program %s", programPath)
	}

	sink := profile.NoOp()
	if cfg.Profile != "" {
		sink = profile.New()
	}

	symbols := symbol.New()
	io := ioregistry.New(symbols)

	functors := functor.NewRegistry()
	functors.SetSearchPath(cfg.LibraryDir)
	for _, lib := range cfg.Libraries {
		if err := functors.LoadLibrary(lib); err != nil {
			diag.Global().Warnf("run: preload library %q: %v", lib, err)
		}
	}

	e := engine.New(&program, engine.Options{
		Functors:   functors,
		IO:         io,
		Profile:    sink,
		Symbols:    symbols,
		NumThreads: numThreads,
	})
	e.ExecuteMain()
	log.Infof("run complete")

	if cfg.Profile != "" {
		out, err := json.MarshalIndent(sink, "", "  ")
		if err != nil {
			return errors.Wrap(err, "run: marshal profile")
		}
		if err := os.WriteFile(cfg.Profile, out, 0o644); err != nil {
			return errors.Wrapf(err, "run: write profile %s", cfg.Profile)
		}
	}
	return nil
}
