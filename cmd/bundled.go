package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anchore/forbiddenapis/forbiddenapis/engine/bundled"
	"github.com/anchore/forbiddenapis/internal/bus"
)

var bundledCmd = &cobra.Command{
	Use:   "bundled",
	Short: "list the bundled signature sets",
	Long: `Lists the names accepted by --bundled and the bundled-signatures config key. JDK sets
(prefixed "jdk-") exist per Java version; refer to them without the version suffix and set
--target-version, or name one version explicitly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return eventLoop(
			startWorker(func() error {
				bus.Report(bundledReport())
				return nil
			}),
			setupSignals(),
			eventSubscription,
			func() {},
			newReporter(),
		)
	},
}

func init() {
	rootCmd.AddCommand(bundledCmd)
}

func bundledReport() string {
	var sb strings.Builder
	for _, name := range bundled.Names() {
		fmt.Fprintln(&sb, name)
	}
	return sb.String()
}
