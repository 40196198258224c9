package internal

import (
	"os"

	"github.com/gookit/color"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   "llarcfg",
	Short: "llarcfg resolves and runs a native build configuration",
	Long: `llarcfg turns recipe options, host facts and dependency locations into a
deterministic set of configure flags, patches the source tree and drives the
configure, build and install steps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootVerbose {
			log.SetOutputLevel(log.Ldebug)
		} else {
			log.SetOutputLevel(log.Linfo)
		}
		color.Enable = term.IsTerminal(int(os.Stdout.Fd()))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging and tool output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}
