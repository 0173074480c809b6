// Package note defines the stored note file format: the frontmatter
// metadata header, tag normalization, and the full-file codec
// (frontmatter + title heading + Markdown body).
package note

import (
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the timestamp format used in frontmatter and handed to
// the index: millisecond-precision UTC ISO-8601.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Metadata is the frontmatter of a stored note. ID is immutable after
// creation; UpdatedAt never precedes CreatedAt after a mutation.
type Metadata struct {
	ID             string
	CreatedAt      string
	UpdatedAt      string
	BannerImageURL *string
	Tags           []string
}

// Now returns the current time in the frontmatter layout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// NewMetadata creates metadata for a fresh note: generated id,
// matching created/updated timestamps, no banner, no tags.
func NewMetadata() Metadata {
	ts := Now()
	return Metadata{ID: uuid.NewString(), CreatedAt: ts, UpdatedAt: ts}
}

// Touch refreshes UpdatedAt, keeping it at or after CreatedAt.
func (m *Metadata) Touch() {
	m.UpdatedAt = Now()
	if m.CreatedAt != "" && m.UpdatedAt < m.CreatedAt {
		m.UpdatedAt = m.CreatedAt
	}
}

// EnsureIdentity fills in any missing identity fields, used after
// parsing a file whose frontmatter was absent or garbled.
func (m *Metadata) EnsureIdentity() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = Now()
	}
	if m.UpdatedAt == "" || m.UpdatedAt < m.CreatedAt {
		m.UpdatedAt = m.CreatedAt
	}
}
