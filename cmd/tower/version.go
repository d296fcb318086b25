package main

import (
	"fmt"
	"runtime/debug"

	"github.com/oriys/tower/internal/output"
	"github.com/oriys/tower/internal/resulttype"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVersion := "unknown"
			if info, ok := debug.ReadBuildInfo(); ok {
				goVersion = info.GoVersion
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tower %s (%s)\n", version, goVersion)
		},
	}
}

func resultTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result-types",
		Short: "List the result types a work item can name in resultClass",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := output.NewPrinter(output.ParseFormat(outputFormat))
			p.SetWriter(cmd.OutOrStdout())
			return p.PrintNames("Result types", resulttype.Default().Names())
		},
	}
}
