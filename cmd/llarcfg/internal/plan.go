package internal

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/llarcfg/internal/build"
)

var (
	planFlags  selectionFlags
	planSource string
	planDeps   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Resolve options and print the configure flags",
	Long: `Plan validates the selected options, probes the host, resolves dependencies
and prints the configure flags in the order they will be passed. Nothing is
modified.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planFlags.register(planCmd)
	planCmd.Flags().StringVarP(&planSource, "source", "s", ".", "Source tree")
	planCmd.Flags().BoolVar(&planDeps, "deps", false, "Also list needed dependencies and where they were found")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	b, sel, err := planFlags.setup(cmd)
	if err != nil {
		return err
	}
	src, err := sourceDir(planSource)
	if err != nil {
		return err
	}
	work, err := os.MkdirTemp(b.WorkRoot, "llarcfg-plan-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	res, err := b.Resolve(context.Background(), src, work, sel)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if planDeps {
		for _, d := range res.Needed {
			got := res.Deps[d.Name]
			if got.Present() {
				fmt.Fprintf(w, "%s %s %s\n", color.Bold.Sprintf("%-12s", d.Name), color.Cyan.Sprintf("%-11s", d.Requirement), got.Path)
			} else {
				fmt.Fprintf(w, "%s %s %s\n", color.Bold.Sprintf("%-12s", d.Name), color.Cyan.Sprintf("%-11s", d.Requirement), color.Warn.Sprint("not present"))
			}
		}
		fmt.Fprintln(w)
	}
	if err := build.WritePlan(w, res.Plan); err != nil {
		return err
	}
	fmt.Fprintln(w, color.Gray.Sprintf("# digest %s", res.Plan.Digest()))
	return nil
}
