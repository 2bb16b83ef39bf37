// Package output provides terminal output utilities for mkp.
//
// This package includes:
//   - Table rendering for packages, manifests, files, the inventory and history
//   - Progress bars and spinners for long-running operations
//
// Tables use plain text and ANSI color codes; colors are dropped when stdout
// is not a terminal or NO_COLOR is set.
package output

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/packaging"
	"github.com/Checkmk/checkmk-sub074/internal/store"
)

// ANSI color codes for package state display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Package states shown in the State column.
const (
	StateInstalled = "installed"
	StateEnabled   = "enabled (inactive)"
	StateDisabled  = "disabled"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// PackageRow is one line of the package list.
type PackageRow struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title"`
	Files   int    `json:"files"`
	State   string `json:"state"`
	Shipped bool   `json:"shipped"`
}

// RenderPackageTable renders the package list, sorted by name and version.
func RenderPackageTable(rows []PackageRow) string {
	if len(rows) == 0 {
		return "No packages found.\n"
	}

	sorted := make([]PackageRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return mkp.PackageVersion(sorted[i].Version).Less(mkp.PackageVersion(sorted[j].Version))
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-12s %-30s %-6s %s\n",
		"Name", "Version", "Title", "Files", "State"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, row := range sorted {
		state := row.State
		if row.Shipped {
			state += ", shipped"
		}
		sb.WriteString(fmt.Sprintf("%-24s %-12s %-30s %-6d %s\n",
			truncate(row.Name, 24),
			truncate(row.Version, 12),
			truncate(row.Title, 30),
			row.Files,
			colorize(stateColor(row.State), state)))
	}

	return sb.String()
}

func stateColor(state string) string {
	switch state {
	case StateInstalled:
		return colorGreen
	case StateEnabled:
		return colorYellow
	default:
		return colorGray
	}
}

// RenderManifest renders the package info block of "mkp show".
func RenderManifest(m *mkp.Manifest) string {
	var sb strings.Builder

	field := func(label, value string) {
		sb.WriteString(fmt.Sprintf("%-24s %s\n", label+":", value))
	}
	field("Name", m.Name.String())
	field("Version", m.Version.String())
	field("Packaged on version", m.VersionPackaged)
	field("Required version", m.VersionMinRequired)
	if until := m.UsableUntil(); until != "" {
		field("Usable until version", until)
	}
	field("Title", m.Title)
	field("Author", m.Author)
	field("Download-URL", m.DownloadURL)
	field("Files", fmt.Sprintf("%d", m.NumFiles()))

	for _, part := range mkp.AllParts() {
		files := m.PartFiles(part)
		if len(files) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s:\n", part.Title()))
		for _, f := range files {
			sb.WriteString("    " + f + "\n")
		}
	}

	if desc := strings.TrimSpace(m.Description); desc != "" {
		sb.WriteString("Description:\n")
		for _, line := range strings.Split(desc, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}

	return sb.String()
}

// FileRow is one file of a package.
type FileRow struct {
	Part mkp.Part
	Path string
	Size int64
	Mode fs.FileMode
	// Missing is set when the file is listed but absent on disk.
	Missing bool
}

// RenderFileTable renders the files of one package.
func RenderFileTable(rows []FileRow) string {
	if len(rows) == 0 {
		return "No files.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-10s %-9s %s\n", "Part", "Size", "Mode", "Path"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, row := range rows {
		size, mode := formatSize(row.Size), row.Mode.String()
		if row.Missing {
			size, mode = colorize(colorRed, "missing"), "-"
		}
		sb.WriteString(fmt.Sprintf("%-16s %-10s %-9s %s\n",
			truncate(row.Part.String(), 16), size, mode, row.Path))
	}

	return sb.String()
}

// RenderInventory renders the site inventory; unowned files come first.
func RenderInventory(entries []packaging.InventoryEntry) string {
	if len(entries) == 0 {
		return "No files found.\n"
	}

	var sb strings.Builder
	var total int64

	sb.WriteString(fmt.Sprintf("%-28s %-10s %-9s %s\n", "Package", "Size", "Mode", "Path"))
	sb.WriteString(strings.Repeat("─", 88))
	sb.WriteString("\n")

	for _, e := range entries {
		owner := colorize(colorYellow, "(unpackaged)")
		if e.Owner != nil {
			owner = truncate(e.Owner.String(), 28)
		}
		total += e.Size
		sb.WriteString(fmt.Sprintf("%-28s %-10s %-9s %s\n",
			owner, formatSize(e.Size), e.Mode.String(), e.Path))
	}

	sb.WriteString(fmt.Sprintf("\n%d files, %s\n", len(entries), formatSize(total)))
	return sb.String()
}

// RenderUnpackaged renders "mkp find": unowned files grouped by part.
func RenderUnpackaged(files map[mkp.Part][]string) string {
	var sb strings.Builder
	for _, part := range mkp.AllParts() {
		if len(files[part]) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s (%s):\n", part.Title(), part))
		for _, f := range files[part] {
			sb.WriteString("  " + f + "\n")
		}
	}
	if sb.Len() == 0 {
		return "No unpackaged files.\n"
	}
	return sb.String()
}

// RenderPartInfo renders the part catalogue with file counts.
func RenderPartInfo(parts []packaging.PartInfo) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-6s %-42s %s\n", "Part", "Files", "Title", "Path"))
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, p := range parts {
		sb.WriteString(fmt.Sprintf("%-16s %-6d %-42s %s\n",
			p.Part, len(p.Files), truncate(p.Title, 42), p.Path))
	}
	return sb.String()
}

// RenderHistory renders recorded events, newest first.
func RenderHistory(events []*store.Event) string {
	if len(events) == 0 {
		return "No history recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-10s %-24s %-12s %s\n",
		"When", "Action", "Package", "Version", "Detail"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%-16s %-10s %-24s %-12s %s\n",
			formatRelativeTime(e.Timestamp),
			e.Action,
			truncate(e.Name, 24),
			truncate(e.Version, 12),
			e.Detail))
	}

	return sb.String()
}

// RenderUpdateResult summarises a reconciliation run.
func RenderUpdateResult(r *packaging.UpdateResult) string {
	var sb strings.Builder

	list := func(label, color string, ids []mkp.PackageID) {
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("%s %s\n", colorize(color, label), id))
		}
	}
	list("uninstalled", colorGray, r.Uninstalled)
	list("installed  ", colorGreen, r.Installed)
	for _, s := range r.Skipped {
		sb.WriteString(fmt.Sprintf("%s %s: %v\n", colorize(colorRed, "skipped    "), s.ID, s.Err))
	}

	if !r.Changed() && len(r.Skipped) == 0 {
		sb.WriteString("Nothing to do.\n")
	}
	return sb.String()
}

// formatSize converts bytes to a human-readable size (IEC units).
func formatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
