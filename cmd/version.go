package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anchore/forbiddenapis/internal"
	"github.com/anchore/forbiddenapis/internal/version"
)

var versionOutputFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show the version",
	RunE:  printVersion,
}

func init() {
	versionCmd.Flags().StringVarP(&versionOutputFormat, "output", "o", "text", "format to show version information (available=[text, json])")

	rootCmd.AddCommand(versionCmd)
}

func printVersion(cmd *cobra.Command, _ []string) error {
	versionInfo := version.FromBuild()
	out := cmd.OutOrStdout()
	switch versionOutputFormat {
	case "text":
		fmt.Fprintln(out, "Application:          ", internal.ApplicationName)
		fmt.Fprintln(out, "Version:              ", versionInfo.Version)
		fmt.Fprintln(out, "BuildDate:            ", versionInfo.BuildDate)
		fmt.Fprintln(out, "GitCommit:            ", versionInfo.GitCommit)
		fmt.Fprintln(out, "GitTreeState:         ", versionInfo.GitTreeState)
		fmt.Fprintln(out, "Platform:             ", versionInfo.Platform)
		fmt.Fprintln(out, "GoVersion:            ", versionInfo.GoVersion)
		fmt.Fprintln(out, "Compiler:             ", versionInfo.Compiler)
		fmt.Fprintln(out, "Max class file version:", versionInfo.MaxClassFileVersion)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", " ")
		err := enc.Encode(&struct {
			version.Version
			Application string `json:"application"`
		}{
			Version:     versionInfo,
			Application: internal.ApplicationName,
		})
		if err != nil {
			return fmt.Errorf("failed to show version information: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", versionOutputFormat)
	}
	return nil
}
