package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history [NAME]",
		Short: "Show recorded package operations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if env.db == nil {
		return errors.New("history database unavailable (see log output)")
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	events, err := env.db.ListEvents(name, historyLimit)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderHistory(events))
	return nil
}
