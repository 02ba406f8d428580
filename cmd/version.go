// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the engine's release version, set at build time via
// -ldflags "-X github.com/ramengine/ramengine/cmd.Version=...".
var Version = "dev"

func init() {
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print the version of ramengine",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(os.Stdout, "Version: "+Version)
			fmt.Fprintln(os.Stdout, "Go Version: "+runtime.Version())
			fmt.Fprintln(os.Stdout, "Platform: "+runtime.GOOS+"/"+runtime.GOARCH)
		},
	}
	RootCommand.AddCommand(versionCommand)
}
