package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	packageOutDir string

	packageCmd = &cobra.Command{
		Use:   "package MANIFEST",
		Short: "Build a package archive from a manifest without installing it",
		Long: `Build the archive described by MANIFEST from the installed files and write
it to the current directory (or --dir). The site is not modified.`,
		Args: cobra.ExactArgs(1),
		RunE: runPackage,
	}
)

func init() {
	packageCmd.Flags().StringVar(&packageOutDir, "dir", ".", "output directory")
}

func runPackage(cmd *cobra.Command, args []string) error {
	m, err := readManifestFile(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	data, err := env.mgr.Package(m)
	if err != nil {
		return err
	}

	name, err := m.ID().FileName()
	if err != nil {
		return err
	}
	path := filepath.Join(packageOutDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write package: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Written %s (%d files)\n", path, m.NumFiles())
	return nil
}
