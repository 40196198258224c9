package internal

import (
	"context"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/llarcfg/internal/patch"
)

var (
	patchFlags  selectionFlags
	patchSource string
	patchBundle string
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply the recipe patch and source edits to a tree",
	Long: `Patch applies the recipe's patch set, or a bundle given with --bundle, and
the source edits implied by the selected options. Either every change is
applied or the tree is left untouched. Changes already present from an
earlier run are skipped.`,
	Args: cobra.NoArgs,
	RunE: runPatch,
}

func init() {
	patchFlags.register(patchCmd)
	patchCmd.Flags().StringVarP(&patchSource, "source", "s", ".", "Source tree")
	patchCmd.Flags().StringVar(&patchBundle, "bundle", "", "Apply this .patch[.gz|.xz|.zst] file instead of the built-in patch")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	b, sel, err := patchFlags.setup(cmd)
	if err != nil {
		return err
	}
	src, err := sourceDir(patchSource)
	if err != nil {
		return err
	}
	work, err := os.MkdirTemp(b.WorkRoot, "llarcfg-patch-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	res, err := b.Resolve(context.Background(), src, work, sel)
	if err != nil {
		return err
	}
	set := res.Plan.Patch
	if patchBundle != "" {
		if set, err = patch.LoadBundle(patchBundle, set.Targets...); err != nil {
			return err
		}
	}
	if err := patch.Ensure(src, set, res.Plan.Edits...); err != nil {
		return err
	}
	color.Success.Printf("applied %s to %s\n", set.Name, src)
	return nil
}
