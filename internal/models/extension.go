package models

import (
	"time"
)

// Extension publication states. A new extension starts UNPUBLISHED and
// becomes visible to the public only after an admin publishes it.
const (
	ExtensionStateUnpublished = "UNPUBLISHED"
	ExtensionStatePublished   = "PUBLISHED"
)

// GitHubStats holds repository metrics collected by the background sync job.
// All fields except Link are absent until the first successful pull.
type GitHubStats struct {
	Link         string
	LastCommit   *time.Time
	OpenIssues   int
	PullRequests int
	LastSuccess  *time.Time
	LastFail     *time.Time
	FailMessage  *string
}

type Extension struct {
	ID          int64
	Name        string
	Description string
	Version     string
	OwnerID     int64
	OwnerName   string // joined from users, not stored on the extension row
	State       string // ExtensionStateUnpublished or ExtensionStatePublished
	Featured    bool   // invariant: Featured implies State == PUBLISHED
	Downloads   int64  // monotonic, mutated only through the download endpoint
	Logo        *string
	Cover       *string
	File        *string
	GitHub      *GitHubStats
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidExtensionState reports whether s is a recognized publication state.
func ValidExtensionState(s string) bool {
	return s == ExtensionStateUnpublished || s == ExtensionStatePublished
}

// IsOwnedBy reports whether the extension belongs to the given user.
func (e *Extension) IsOwnedBy(userID int64) bool {
	return e.OwnerID == userID
}
