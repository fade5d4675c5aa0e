package domain

import "time"

// QueuedFile records one file diverted out of a watch folder while its
// resource was degraded. Entries are removed once the file is replayed.
type QueuedFile struct {
	ID           string    `json:"id"`
	ConfigName   string    `json:"config_name"`
	Resource     string    `json:"resource"`
	OriginalPath string    `json:"original_path"`
	QueuedPath   string    `json:"queued_path"`
	Reason       string    `json:"reason"`
	QueuedAt     time.Time `json:"queued_at"`
}

// DegradedResource is the current degraded-mode record for one resource.
type DegradedResource struct {
	Resource  string    `json:"resource"`
	Reason    string    `json:"reason"`
	EnteredAt time.Time `json:"entered_at"`
}
