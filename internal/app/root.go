// Package app implements the mkp command line.
package app

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	siteRoot string
	verbose  int
	debug    bool

	// RootCmd is the root command for mkp
	RootCmd = &cobra.Command{
		Use:   "mkp",
		Short: "Manage extension packages of a monitoring site",
		Long: `mkp packages, installs, enables and disables extension packages (MKPs)
of a monitoring site.

Archives live in three tiers: shipped (bundled with the platform), local
(uploaded or built on this site) and enabled (everything that should be
active). 'mkp update-active' installs the newest applicable enabled version of
every package and uninstalls everything else.

Examples:
  # List all packages and their state
  mkp list

  # Add and enable an archive
  mkp add foo-1.0.mkp
  mkp enable foo 1.0

  # Turn unpackaged local files into a package
  mkp find
  mkp template foo
  mkp create /omd/sites/mysite/tmp/check_mk/foo.manifest.temp

  # Bring installed packages in line with the enabled tier
  mkp update-active`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <site>/etc/mkp.toml)")
	RootCmd.PersistentFlags().StringVar(&siteRoot, "site", "", "site root directory (default: $OMD_ROOT)")
	RootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging; reconciliation fails on the first broken package")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(findCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(templateCmd)
	RootCmd.AddCommand(packageCmd)
	RootCmd.AddCommand(createCmd)
	RootCmd.AddCommand(editCmd)
	RootCmd.AddCommand(showCmd)
	RootCmd.AddCommand(showAllCmd)
	RootCmd.AddCommand(filesCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(releaseCmd)
	RootCmd.AddCommand(enableCmd)
	RootCmd.AddCommand(disableCmd)
	RootCmd.AddCommand(disableOutdatedCmd)
	RootCmd.AddCommand(updateActiveCmd)
	RootCmd.AddCommand(inventoryCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// Debug reports whether --debug was given.
func Debug() bool {
	return debug
}
