package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	findJSON bool

	findCmd = &cobra.Command{
		Use:   "find",
		Short: "Show files below the part directories that belong to no package",
		Long: `Show local files that are not part of any installed package.

Dot files, editor backups (*~), compiled Python files and paths matching the
configured ignore_globs are skipped.`,
		Args: cobra.NoArgs,
		RunE: runFind,
	}
)

func init() {
	findCmd.Flags().BoolVar(&findJSON, "json", false, "print JSON")
}

func runFind(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	files, err := env.mgr.UnpackagedFiles()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if findJSON {
		data, err := json.MarshalIndent(files, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode files: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, output.RenderUnpackaged(files))
	return nil
}
