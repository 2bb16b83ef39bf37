package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	listJSON bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all packages and their state",
		Long: `List every stored, enabled or installed package version.

States:
  installed            the version is active on this site
  enabled (inactive)   enabled, but another version is installed or it is not applicable
  disabled             stored only`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	rows, err := packageRows(env)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode packages: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, output.RenderPackageTable(rows))
	return nil
}

func packageRows(env *environment) ([]output.PackageRow, error) {
	ps := env.mgr.Store()

	installed, err := env.mgr.Installer().List()
	if err != nil {
		return nil, err
	}
	installedIDs := make(map[mkp.PackageID]bool, len(installed))
	for _, m := range installed {
		installedIDs[m.ID()] = true
	}

	stored, err := storedManifests(env)
	if err != nil {
		return nil, err
	}
	enabled, err := ps.ListEnabled()
	if err != nil {
		return nil, err
	}

	seen := make(map[mkp.PackageID]bool)
	var rows []output.PackageRow
	add := func(m *mkp.Manifest) {
		id := m.ID()
		if seen[id] {
			return
		}
		seen[id] = true

		state := output.StateDisabled
		switch {
		case installedIDs[id]:
			state = output.StateInstalled
		case ps.IsEnabled(id):
			state = output.StateEnabled
		}
		rows = append(rows, output.PackageRow{
			Name:    id.Name.String(),
			Version: id.Version.String(),
			Title:   m.Title,
			Files:   m.NumFiles(),
			State:   state,
			Shipped: ps.IsShipped(id),
		})
	}

	for _, m := range installed {
		add(m)
	}
	for _, m := range stored {
		add(m)
	}
	for _, m := range enabled {
		add(m)
	}
	return rows, nil
}
