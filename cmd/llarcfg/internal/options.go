package internal

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/recipe/opencv"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the options a recipe declares",
	Args:  cobra.NoArgs,
	RunE:  runOptions,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(cmd *cobra.Command, args []string) error {
	reg := formula.NewRegistry()
	if err := opencv.New().Declare(reg); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, opt := range reg.Options() {
		fmt.Fprint(w, color.Bold.Sprintf("%-16s", opt.Name))
		switch opt.Kind {
		case formula.Choice:
			fmt.Fprint(w, color.Cyan.Sprintf(" [%s]", strings.Join(opt.Choices, "|")))
		default:
			fmt.Fprint(w, color.Cyan.Sprint(" [bool]"))
		}
		fmt.Fprintf(w, " default=%s", opt.Default)
		if opt.Implies != "" {
			fmt.Fprint(w, color.Yellow.Sprintf(" requires %s", opt.Implies))
		}
		fmt.Fprintf(w, "\n    %s\n", opt.Desc)
	}
	return nil
}
