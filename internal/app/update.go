package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/output"
	"github.com/Checkmk/checkmk-sub074/internal/packaging"
)

var (
	updatePre bool

	updateActiveCmd = &cobra.Command{
		Use:   "update-active",
		Short: "Install the newest applicable enabled version of every package",
		Long: `Uninstall packages that are not applicable to this platform version, then
install the newest applicable enabled version of each package.

Broken packages are skipped and reported; with --debug the first one aborts
the run. Running this again after an interruption repairs the site.

With --pre-update, first make sure every installed package has an archive and
migrate archives of the old disabled-packages directory into the store.`,
		Args: cobra.NoArgs,
		RunE: runUpdateActive,
	}
)

func init() {
	updateActiveCmd.Flags().BoolVar(&updatePre, "pre-update", false, "run the pre-update migrations first")
}

func runUpdateActive(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	spinner := output.NewSpinner("Updating active packages")
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.Start()

	var result *packaging.UpdateResult
	if updatePre {
		result, err = env.mgr.PreUpdateConfigActions(context.Background())
	} else {
		result, err = env.mgr.UpdateActivePackages(context.Background())
	}
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderUpdateResult(result))
	return nil
}
