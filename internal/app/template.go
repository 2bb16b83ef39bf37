package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

var templateCmd = &cobra.Command{
	Use:   "template NAME",
	Short: "Write a manifest template listing all unpackaged files",
	Long: `Write a manifest for a new package NAME to <site>/tmp/check_mk/NAME.manifest.temp.

The template lists every unpackaged file; edit it, then build the package with
'mkp create' or 'mkp package'.`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplate,
}

func runTemplate(cmd *cobra.Command, args []string) error {
	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if env.mgr.Installer().IsInstalled(name) {
		return mkp.Errorf(mkp.ErrExists, "Package %s is already installed", name)
	}

	files, err := env.mgr.UnpackagedFiles()
	if err != nil {
		return err
	}

	m := mkp.Template(name, env.mgr.PlatformVersion())
	for part, list := range files {
		if len(list) > 0 {
			m.Files[part] = list
		}
	}

	data, err := m.MarshalJSONIndent()
	if err != nil {
		return err
	}

	dir := env.mgr.PathConfig().TmpDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, string(name)+".manifest.temp")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest template: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created '%s'.\n", path)
	fmt.Fprintf(out, "You may now edit it, then create the package using 'mkp create %s'.\n", path)
	return nil
}
