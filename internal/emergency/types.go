package emergency

import (
	"time"

	"github.com/safeguardhq/safeguard/internal/geo"
)

// Kind distinguishes the two session lifecycles.
type Kind string

const (
	KindPanic  Kind = "panic"
	KindEscort Kind = "escort"
)

// Category is the panic taxonomy. Medical and fire route straight to the
// emergency-service contact directory and never create a responder-visible
// session.
type Category string

const (
	CategoryViolence   Category = "violence"
	CategoryRobbery    Category = "robbery"
	CategoryKidnapping Category = "kidnapping"
	CategoryBreakIn    Category = "breakin"
	CategoryHarassment Category = "harassment"
	CategoryMedical    Category = "medical"
	CategoryFire       Category = "fire"
	CategoryOther      Category = "other"
)

var categories = map[Category]bool{
	CategoryViolence:   true,
	CategoryRobbery:    true,
	CategoryKidnapping: true,
	CategoryBreakIn:    true,
	CategoryHarassment: true,
	CategoryMedical:    true,
	CategoryFire:       true,
	CategoryOther:      true,
}

// Valid reports whether c is part of the taxonomy.
func (c Category) Valid() bool { return categories[c] }

// RoutesToContacts reports whether activation for this category should show
// emergency-service contacts instead of opening a session.
func (c Category) RoutesToContacts() bool {
	return c == CategoryMedical || c == CategoryFire
}

// Status is the session state machine: active is the only live state,
// resolved is terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// TrackPoint is one entry of a session's location history.
type TrackPoint struct {
	Point      geo.Point `json:"location"`
	AccuracyM  float64   `json:"accuracyM"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Session is the authoritative emergency record. At most one active session
// per owner and kind exists at any time.
type Session struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Kind        Kind       `json:"kind"`
	Category    Category   `json:"category"`
	Status      Status     `json:"status"`
	ActivatedAt time.Time  `json:"activatedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// ContactCard is an emergency-service contact shown for medical/fire
// activations, ordered by priority.
type ContactCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Service  string `json:"service"`
	Priority int    `json:"priority"`
}
