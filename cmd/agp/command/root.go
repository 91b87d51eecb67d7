package command

import (
	"fmt"
	"os"

	"github.com/DataDog/datadog-agent/pkg/util/fxutil"
	"github.com/glucolab/agp/api"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var logLevel string

// Run executes a given function with dependencies supplied by the service DI
// graph. `f` must return an error or nothing. Only the dependencies `f` asks
// for are constructed, so commands that do not touch the store run without a
// database.
func Run(f interface{}, opts ...fx.Option) error {
	deps := append(opts, api.Dependencies()...)
	return fxutil.OneShot(f, deps...)
}

var rootCmd = &cobra.Command{
	Use:   "agp",
	Short: "CGM analytics service and tooling",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Overwrite zap's log level
		return os.Setenv("LOG_LEVEL", logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "error", "Log Level")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
