package store

import "time"

// Event records one package operation.
type Event struct {
	ID        int64
	Timestamp time.Time
	Action    string // "install", "update", "uninstall", ...
	Name      string
	Version   string
	Detail    string
}
