package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

var (
	enableCmd = &cobra.Command{
		Use:   "enable NAME [VERSION]",
		Short: "Enable and install a stored package",
		Long: `Enable version VERSION of package NAME and install it. Without VERSION the
package must have exactly one stored version.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runEnable,
	}

	disableCmd = &cobra.Command{
		Use:   "disable NAME [VERSION]",
		Short: "Disable a package and uninstall it if it is active",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDisable,
	}

	disableOutdatedCmd = &cobra.Command{
		Use:   "disable-outdated",
		Short: "Disable packages that are not usable with this platform version",
		Long: `Disable and uninstall every installed package whose version.usable_until
has been reached by the running platform version.`,
		Args: cobra.NoArgs,
		RunE: runDisableOutdated,
	}
)

func parseNameVersion(args []string) (mkp.PackageName, mkp.PackageVersion, error) {
	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return "", "", err
	}
	version, err := optionalVersion(args, 1)
	if err != nil {
		return "", "", err
	}
	return name, version, nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	name, version, err := parseNameVersion(args)
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.mgr.Enable(context.Background(), name, version)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enabled and installed %s\n", m.ID())
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	name, version, err := parseNameVersion(args)
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.mgr.Disable(context.Background(), name, version); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Disabled %s\n", name)
	return nil
}

func runDisableOutdated(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	disabled, err := env.mgr.DisableOutdated(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(disabled) == 0 {
		fmt.Fprintln(out, "No outdated packages.")
		return nil
	}
	for _, id := range disabled {
		fmt.Fprintf(out, "Disabled outdated package %s\n", id)
	}
	return nil
}
