package internal

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/llarcfg/internal/env"
	"github.com/goplus/llarcfg/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print the host facts rules are evaluated against",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := env.Load(os.LookupEnv)
	if err != nil {
		return err
	}
	facts := probe.New(cfg).Probe(context.Background())
	w := cmd.OutOrStdout()
	for _, f := range facts.All() {
		fmt.Fprintf(w, "%s = %s\n", color.Bold.Sprintf("%-24s", f.Key), f.Value)
	}
	for _, pf := range facts.Failures() {
		fmt.Fprintln(w, color.Warn.Sprint(pf.Error()))
	}
	return nil
}
