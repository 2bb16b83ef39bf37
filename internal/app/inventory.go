package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/output"
)

var (
	inventoryJSON      bool
	inventoryParts     bool
	inventoryRulePacks bool

	inventoryCmd = &cobra.Command{
		Use:   "inventory",
		Short: "List every file below the part directories with its owner",
		Long: `List every file below the part directories together with the package that
owns it. Unpackaged files are listed first. Files reachable through several
paths (symlinks) are listed once.

--parts shows the part catalogue instead, --rule-packs the owners of the
exported event console rule packs.`,
		Args: cobra.NoArgs,
		RunE: runInventory,
	}
)

func init() {
	inventoryCmd.Flags().BoolVar(&inventoryJSON, "json", false, "print JSON")
	inventoryCmd.Flags().BoolVar(&inventoryParts, "parts", false, "show the part catalogue")
	inventoryCmd.Flags().BoolVar(&inventoryRulePacks, "rule-packs", false, "show rule pack owners")
	inventoryCmd.MarkFlagsMutuallyExclusive("parts", "rule-packs")
}

func runInventory(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	var result any
	var text string
	switch {
	case inventoryParts:
		parts, err := env.mgr.PartInfo()
		if err != nil {
			return err
		}
		result, text = parts, output.RenderPartInfo(parts)

	case inventoryRulePacks:
		owners, err := env.mgr.RulePackOwners()
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(owners))
		for id := range owners {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var sb strings.Builder
		for _, id := range ids {
			owner := "(local)"
			if o := owners[id]; o != nil {
				owner = o.String()
			}
			sb.WriteString(fmt.Sprintf("%-32s %s\n", id, owner))
		}
		if len(ids) == 0 {
			sb.WriteString("No rule packs.\n")
		}
		result, text = owners, sb.String()

	default:
		entries, err := env.mgr.Inventory()
		if err != nil {
			return err
		}
		result, text = entries, output.RenderInventory(entries)
	}

	out := cmd.OutOrStdout()
	if inventoryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode inventory: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, text)
	return nil
}
