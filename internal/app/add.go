package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var addCmd = &cobra.Command{
	Use:   "add FILE...",
	Short: "Store package archives in the local tier",
	Long: `Store one or more package archives in the local tier. The packages are
neither enabled nor installed; use 'mkp enable' for that.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	var progress *output.ProgressBar
	if len(args) > 1 {
		progress = output.NewProgress(len(args), "Storing packages")
		progress.SetWriter(cmd.ErrOrStderr())
	}

	var added []string
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		m, err := env.mgr.Add(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		added = append(added, m.ID().String())
		if progress != nil {
			progress.Increment()
		}
	}
	if progress != nil {
		progress.Finish()
	}

	for _, id := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", id)
	}
	return nil
}
