package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

var removeCmd = &cobra.Command{
	Use:   "remove NAME VERSION",
	Short: "Delete a stored package archive",
	Long: `Delete the archive of version VERSION of package NAME from the local tier.

Enabled archives must be disabled first; shipped archives cannot be removed.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := mkp.NewPackageID(args[0], args[1])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.mgr.Remove(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
	return nil
}
