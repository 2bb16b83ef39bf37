package hooks

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

// Rule pack sources recorded in the registry.
const (
	SourceMKP   = "mkp"
	SourceLocal = "local"
)

// RulePack is one entry of the event console rule-pack registry.
type RulePack struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
}

type rulePackRegistry struct {
	RulePacks []RulePack `yaml:"rule_packs"`
}

// RulePacks keeps the rule-pack registry in sync with packaged rule packs.
// Installing a rule-pack file adds a proxy entry with source "mkp",
// releasing turns it into a local rule pack and uninstalling drops it.
type RulePacks struct {
	path   string
	logger *zap.Logger
}

// NewRulePacks creates the hooks for the registry file at path.
func NewRulePacks(path string, logger *zap.Logger) *RulePacks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RulePacks{path: path, logger: logger}
}

// RulePackID derives the rule-pack id from a packaged file name.
func RulePackID(file string) string {
	base := path.Base(file)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Load returns the registry entries. A missing registry is empty.
func (r *RulePacks) Load() ([]RulePack, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rule pack registry: %w", err)
	}
	var reg rulePackRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack registry: %w", err)
	}
	return reg.RulePacks, nil
}

func (r *RulePacks) save(packs []RulePack) error {
	data, err := yaml.Marshal(rulePackRegistry{RulePacks: packs})
	if err != nil {
		return fmt.Errorf("failed to encode rule pack registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create rule pack registry directory: %w", err)
	}
	tmp := r.path + ".new"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rule pack registry: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// update applies fn to the registry, saving only if it reports a change.
func (r *RulePacks) update(fn func([]RulePack) ([]RulePack, bool)) error {
	packs, err := r.Load()
	if err != nil {
		return err
	}
	packs, changed := fn(packs)
	if !changed {
		return nil
	}
	return r.save(packs)
}

// Install implements PartHooks.
func (r *RulePacks) Install(files []string) error {
	return r.update(func(packs []RulePack) ([]RulePack, bool) {
		changed := false
		for _, f := range files {
			id := RulePackID(f)
			idx := indexOf(packs, id)
			switch {
			case idx < 0:
				packs = append(packs, RulePack{ID: id, Source: SourceMKP})
				changed = true
			case packs[idx].Source != SourceMKP:
				packs[idx].Source = SourceMKP
				changed = true
			}
			r.logger.Debug("rule pack installed", zap.String("id", id))
		}
		return packs, changed
	})
}

// Uninstall implements PartHooks.
func (r *RulePacks) Uninstall(files []string) error {
	drop := make(map[string]bool, len(files))
	for _, f := range files {
		drop[RulePackID(f)] = true
	}
	return r.update(func(packs []RulePack) ([]RulePack, bool) {
		kept := packs[:0]
		for _, p := range packs {
			if drop[p.ID] && p.Source == SourceMKP {
				r.logger.Debug("rule pack removed", zap.String("id", p.ID))
				continue
			}
			kept = append(kept, p)
		}
		return kept, len(kept) != len(packs)
	})
}

// Release implements PartHooks.
func (r *RulePacks) Release(files []string) error {
	return r.update(func(packs []RulePack) ([]RulePack, bool) {
		changed := false
		for _, f := range files {
			if idx := indexOf(packs, RulePackID(f)); idx >= 0 && packs[idx].Source != SourceLocal {
				packs[idx].Source = SourceLocal
				changed = true
			}
		}
		return packs, changed
	})
}

func indexOf(packs []RulePack, id string) int {
	for i, p := range packs {
		if p.ID == id {
			return i
		}
	}
	return -1
}
