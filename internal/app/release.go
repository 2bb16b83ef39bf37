package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

var releaseCmd = &cobra.Command{
	Use:   "release NAME",
	Short: "Dissolve an installed package, keeping its files",
	Long: `Remove package NAME from the installed registry. Its files stay on disk and
become unpackaged, so they can be edited or packaged again.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func runRelease(cmd *cobra.Command, args []string) error {
	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.mgr.Release(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", name)
	return nil
}
