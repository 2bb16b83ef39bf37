package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	showJSON    bool
	showAllJSON bool

	showCmd = &cobra.Command{
		Use:   "show NAME|FILE [VERSION]",
		Short: "Show the manifest of a package",
		Long: `Show the manifest of an installed package, of a stored version of a package,
or of an archive file (any argument ending in .mkp that exists on disk).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runShow,
	}

	showAllCmd = &cobra.Command{
		Use:   "show-all",
		Short: "Show the manifests of all stored and installed packages",
		Args:  cobra.NoArgs,
		RunE:  runShowAll,
	}

	filesCmd = &cobra.Command{
		Use:   "files NAME",
		Short: "List the files of an installed package",
		Args:  cobra.ExactArgs(1),
		RunE:  runFiles,
	}
)

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the manifest as JSON")
	showAllCmd.Flags().BoolVar(&showAllJSON, "json", false, "print JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	if strings.HasSuffix(args[0], mkp.Extension) {
		if st, err := os.Stat(args[0]); err == nil && st.Mode().IsRegular() {
			m, err := archive.ReadManifestFile(args[0])
			if err != nil {
				return err
			}
			return printManifest(cmd, m, showJSON)
		}
	}

	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return err
	}
	version, err := optionalVersion(args, 1)
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if version != "" {
		m, err := env.mgr.Store().Manifest(mkp.PackageID{Name: name, Version: version})
		if err != nil {
			return err
		}
		return printManifest(cmd, m, showJSON)
	}

	m, err := env.mgr.Installer().Get(name)
	if err != nil {
		return err
	}
	if m != nil {
		return printManifest(cmd, m, showJSON)
	}

	stored, err := storedManifests(env)
	if err != nil {
		return err
	}
	var matches []*mkp.Manifest
	for _, s := range stored {
		if s.Name == name {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return mkp.Errorf(mkp.ErrNotFound, "Package %s does not exist", name)
	case 1:
		return printManifest(cmd, matches[0], showJSON)
	default:
		return mkp.Errorf(mkp.ErrInvalid, "Package %s is not installed and has %d versions, please specify one", name, len(matches))
	}
}

// storedManifests returns the local and shipped manifests, each ID once.
func storedManifests(env *environment) ([]*mkp.Manifest, error) {
	ps := env.mgr.Store()
	local, err := ps.ListLocal()
	if err != nil {
		return nil, err
	}
	shipped, err := ps.ListShipped()
	if err != nil {
		return nil, err
	}

	seen := make(map[mkp.PackageID]bool)
	var out []*mkp.Manifest
	for _, m := range append(local, shipped...) {
		if !seen[m.ID()] {
			seen[m.ID()] = true
			out = append(out, m)
		}
	}
	return out, nil
}

func runShowAll(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	installed, err := env.mgr.Installer().List()
	if err != nil {
		return err
	}
	stored, err := storedManifests(env)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showAllJSON {
		data, err := json.MarshalIndent(map[string][]*mkp.Manifest{
			"installed": installed,
			"stored":    stored,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode manifests: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	section := func(title string, manifests []*mkp.Manifest) {
		fmt.Fprintf(out, "%s (%d)\n\n", title, len(manifests))
		for _, m := range manifests {
			fmt.Fprintln(out, output.RenderManifest(m))
		}
	}
	section("Installed packages", installed)
	section("Stored packages", stored)
	return nil
}

func runFiles(cmd *cobra.Command, args []string) error {
	name, err := mkp.NewPackageName(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.mgr.Installer().Get(name)
	if err != nil {
		return err
	}
	if m == nil {
		return mkp.Errorf(mkp.ErrNotInstalled, "Package %s is not installed", name)
	}

	pc := env.mgr.PathConfig()
	var rows []output.FileRow
	for _, part := range mkp.AllParts() {
		for _, rel := range m.PartFiles(part) {
			path := filepath.Join(pc.Path(part), filepath.FromSlash(rel))
			row := output.FileRow{Part: part, Path: path}
			if st, err := os.Stat(path); err == nil {
				row.Size, row.Mode = st.Size(), st.Mode()
			} else {
				row.Missing = true
			}
			rows = append(rows, row)
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderFileTable(rows))
	return nil
}
