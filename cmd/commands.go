// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd assembles the ramengine CLI: a run subcommand that loads a
// RAM program and drives it to fixpoint, and a version subcommand.
package cmd

import (
	"os"
	"path"

	"github.com/spf13/cobra"
)

// RootCommand is the base CLI command every subcommand is registered onto.
var RootCommand = &cobra.Command{
	Use:   path.Base(os.Args[0]),
	Short: "ramengine: a bottom-up Datalog/RAM evaluation engine",
	Long:  "ramengine interprets a relational-algebra machine program, evaluating its relations to a fixpoint.",
}
