package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	inspectJSON bool

	inspectCmd = &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the manifest of a package archive without installing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the manifest as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	m, err := archive.ReadManifestFile(args[0])
	if err != nil {
		return err
	}
	return printManifest(cmd, m, inspectJSON)
}

func printManifest(cmd *cobra.Command, m *mkp.Manifest, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := m.MarshalJSONIndent()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, output.RenderManifest(m))
	return nil
}
