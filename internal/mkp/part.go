package mkp

import (
	"io/fs"
	"path"
	"strings"
)

// Part is a content category of a package. The set of parts is closed.
type Part string

const (
	PartAgentBased    Part = "agent_based"
	PartChecks        Part = "checks"
	PartInventory     Part = "inventory"
	PartCheckman      Part = "checkman"
	PartAgents        Part = "agents"
	PartNotifications Part = "notifications"
	PartWeb           Part = "web"
	PartPNPTemplates  Part = "pnp-templates"
	PartDoc           Part = "doc"
	PartLocales       Part = "locales"
	PartBin           Part = "bin"
	PartLib           Part = "lib"
	PartMIBs          Part = "mibs"
	PartAlertHandlers Part = "alert_handlers"
	PartECRulePacks   Part = "ec_rule_packs"
)

type partSpec struct {
	title  string
	dir    string // relative to the site root
	mode   fs.FileMode
	config bool
}

var partSpecs = map[Part]partSpec{
	PartAgentBased:    {"Agent based plugins (Checks, Inventory)", "local/lib/check_mk/base/plugins/agent_based", 0o644, false},
	PartChecks:        {"Legacy check plugins", "local/share/check_mk/checks", 0o644, false},
	PartInventory:     {"Legacy inventory plugins", "local/share/check_mk/inventory", 0o644, false},
	PartCheckman:      {"Checks' man pages", "local/share/check_mk/checkman", 0o644, false},
	PartAgents:        {"Agents", "local/share/check_mk/agents", 0o755, false},
	PartNotifications: {"Notification scripts", "local/share/check_mk/notifications", 0o755, false},
	PartWeb:           {"GUI extensions", "local/share/check_mk/web", 0o644, false},
	PartPNPTemplates:  {"PNP4Nagios templates (deprecated)", "local/share/check_mk/pnp-templates", 0o644, false},
	PartDoc:           {"Documentation files", "local/share/doc/check_mk", 0o644, false},
	PartLocales:       {"Localizations", "local/share/check_mk/locale", 0o644, false},
	PartBin:           {"Binaries", "local/bin", 0o755, false},
	PartLib:           {"Libraries", "local/lib", 0o644, false},
	PartMIBs:          {"SNMP MIBs", "local/share/snmp/mibs", 0o644, false},
	PartAlertHandlers: {"Alert handlers", "local/share/check_mk/alert_handlers", 0o755, false},
	PartECRulePacks:   {"Event Console rule packs", "etc/check_mk/mkeventd.d/mkp/rule_packs", 0o644, true},
}

// partOrder is the order parts are processed and archived in.
var partOrder = []Part{
	PartAgentBased, PartChecks, PartInventory, PartCheckman, PartAgents,
	PartNotifications, PartWeb, PartPNPTemplates, PartDoc, PartLocales,
	PartBin, PartLib, PartMIBs, PartAlertHandlers, PartECRulePacks,
}

// AllParts returns every part, package parts first, then config parts.
func AllParts() []Part {
	out := make([]Part, len(partOrder))
	copy(out, partOrder)
	return out
}

// ParsePart validates a part identifier.
func ParsePart(raw string) (Part, error) {
	p := Part(raw)
	if _, ok := partSpecs[p]; !ok {
		return "", Errorf(ErrInvalid, "unknown package part %q", raw)
	}
	return p, nil
}

// String returns the part identifier.
func (p Part) String() string { return string(p) }

// Title returns the human readable title of the part.
func (p Part) Title() string { return partSpecs[p].title }

// IsConfig reports whether the part lives in the site configuration rather
// than the local hierarchy.
func (p Part) IsConfig() bool { return partSpecs[p].config }

// DefaultMode returns the default permission bits for files of this part.
func (p Part) DefaultMode() fs.FileMode { return partSpecs[p].mode }

// Mode returns the permission bits a file at rel (relative to the part
// directory) must have.
func (p Part) Mode(rel string) fs.FileMode {
	if p == PartLib {
		clean := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
		if clean == "nagios/plugins" || strings.HasPrefix(clean, "nagios/plugins/") {
			return 0o755
		}
	}
	return p.DefaultMode()
}

// ArchiveEntry is the name of the part's sub-archive inside a package.
func (p Part) ArchiveEntry() string { return string(p) + ".tar" }
