package internal

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var (
	buildFlags  selectionFlags
	buildSource string
	buildOutput string
	buildForce  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Resolve, patch, configure, build and install",
	Long: `Build resolves the configuration, patches the source tree and runs the
configure, build and install steps in a scratch directory. An install prefix
holding a receipt for the same configuration is left alone unless --force.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildFlags.register(buildCmd)
	buildCmd.Flags().StringVarP(&buildSource, "source", "s", ".", "Source tree")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "O", "", "Also copy the files this build installed to a directory, .zip, .tar.gz or .tar.xz")
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Rebuild even if the prefix is up to date")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, sel, err := buildFlags.setup(cmd)
	if err != nil {
		return err
	}
	b.Force = buildForce
	src, err := sourceDir(buildSource)
	if err != nil {
		return err
	}
	// Resolve output path before the build runs
	if buildOutput != "" {
		if buildOutput, err = filepath.Abs(buildOutput); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := b.Build(ctx, src, sel)
	if err != nil {
		return err
	}
	if res.Cached {
		color.Info.Printf("%s is up to date (%s)\n", res.OutputDir, res.Digest[:12])
	} else {
		color.Success.Printf("installed to %s (%s)\n", res.OutputDir, res.Digest[:12])
	}
	if buildOutput != "" {
		return outputResult(res.OutputDir, res.Files, buildOutput)
	}
	return nil
}
