// Package eventlog stores the append-only world event stream in a local
// SQLite file and answers the bounded per-avatar queries the simulator and
// the HTTP surface need. Duplicate suppression is handled here so two-party
// actions can emit the same event from either side safely.
package eventlog

import (
	"sort"

	"github.com/google/uuid"
)

// Event is one entry of an avatar's (or the world's) history.
type Event struct {
	ID         string   `json:"id"`
	Month      int      `json:"month"`
	Content    string   `json:"content"`
	RelatedIDs []string `json:"related_ids"`
	IsMajor    bool     `json:"is_major"`
	IsStory    bool     `json:"is_story"`
}

// New builds an event with a fresh id and the related ids sorted, which
// keeps the dedupe key and the serialized form stable.
func New(month int, content string, relatedIDs []string, major, story bool) Event {
	ids := append([]string(nil), relatedIDs...)
	sort.Strings(ids)
	return Event{
		ID:         uuid.NewString(),
		Month:      month,
		Content:    content,
		RelatedIDs: ids,
		IsMajor:    major,
		IsStory:    story,
	}
}
