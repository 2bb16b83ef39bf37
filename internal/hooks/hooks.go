// Package hooks defines the callbacks the host platform runs when files of
// a part are installed, uninstalled or released.
package hooks

import (
	"errors"
	"fmt"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// PartHooks receives the relative paths of the files of one part that were
// just installed, removed, or released from package ownership.
type PartHooks interface {
	Install(files []string) error
	Uninstall(files []string) error
	Release(files []string) error
}

// Nop is the hook set of parts that need no extra work.
type Nop struct{}

func (Nop) Install([]string) error   { return nil }
func (Nop) Uninstall([]string) error { return nil }
func (Nop) Release([]string) error   { return nil }

// Registry maps parts to their hooks. Parts without an entry use Nop.
type Registry map[mkp.Part]PartHooks

// For returns the hooks of part.
func (r Registry) For(part mkp.Part) PartHooks {
	if h, ok := r[part]; ok && h != nil {
		return h
	}
	return Nop{}
}

// Install runs the install hook of every part in files.
func (r Registry) Install(files map[mkp.Part][]string) error {
	return r.each(files, "install", PartHooks.Install)
}

// Uninstall runs the uninstall hook of every part in files.
func (r Registry) Uninstall(files map[mkp.Part][]string) error {
	return r.each(files, "uninstall", PartHooks.Uninstall)
}

// Release runs the release hook of every part in files.
func (r Registry) Release(files map[mkp.Part][]string) error {
	return r.each(files, "release", PartHooks.Release)
}

// each calls fn per part in catalogue order and keeps going after a
// failure; all errors are returned together.
func (r Registry) each(files map[mkp.Part][]string, action string, fn func(PartHooks, []string) error) error {
	var errs []error
	for _, part := range mkp.AllParts() {
		if len(files[part]) == 0 {
			continue
		}
		if err := fn(r.For(part), files[part]); err != nil {
			errs = append(errs, fmt.Errorf("%s hook of part %s: %w", action, part, err))
		}
	}
	return errors.Join(errs...)
}
