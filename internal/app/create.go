package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

var (
	createCmd = &cobra.Command{
		Use:   "create MANIFEST",
		Short: "Create and install a package from local files",
		Long: `Create a package from the files listed in MANIFEST. The files stay where they
are; the new archive is stored in the local tier, enabled and installed.`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}

	editCmd = &cobra.Command{
		Use:   "edit NAME MANIFEST",
		Short: "Replace the manifest of an installed package",
		Long: `Rebuild the installed package NAME from MANIFEST. The manifest may rename the
package, change its version or its file list. Files dropped from the list
become unpackaged; they are not deleted.`,
		Args: cobra.ExactArgs(2),
		RunE: runEdit,
	}
)

func runCreate(cmd *cobra.Command, args []string) error {
	m, err := readManifestFile(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	created, err := env.mgr.Create(context.Background(), m)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d files)\n", created.ID(), created.NumFiles())
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return err
	}
	m, err := readManifestFile(args[1])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	edited, err := env.mgr.Edit(context.Background(), name, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%d files)\n", edited.ID(), edited.NumFiles())
	return nil
}
