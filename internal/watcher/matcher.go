package watcher

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// isArchiveEvent reports whether ev changes the set of enabled archives.
// Hidden files are the temporaries of atomic writes and are ignored; their
// rename onto the final name produces its own Create event.
func isArchiveEvent(ev fsnotify.Event) bool {
	if ev.Op&relevantOps == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, mkp.Extension)
}
