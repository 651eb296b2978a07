package models

import (
	"strings"
	"time"
)

// ScentNotes holds the three ordered note layers of a fragrance.
type ScentNotes struct {
	Top    []string `json:"top"`
	Middle []string `json:"middle"`
	Base   []string `json:"base"`
}

// All returns every note across the three layers.
func (n ScentNotes) All() []string {
	out := make([]string, 0, len(n.Top)+len(n.Middle)+len(n.Base))
	out = append(out, n.Top...)
	out = append(out, n.Middle...)
	out = append(out, n.Base...)
	return out
}

// CartLine is one product entry within a cart. UnitPrice is a snapshot taken
// at add time, in minor currency units; it is never re-fetched live.
type CartLine struct {
	ProductID   int64      `json:"product_id"`
	DisplaySlug string     `json:"display_slug"`
	Name        string     `json:"name"`
	Brand       string     `json:"brand"`
	UnitPrice   int64      `json:"unit_price"`
	Quantity    int        `json:"quantity"`
	ImageURL    string     `json:"image_url,omitempty"`
	Size        string     `json:"size,omitempty"`
	ScentNotes  ScentNotes `json:"scent_notes,omitempty"`
}

// Valid reports whether a line is acceptable at a deserialization boundary.
// Invalid lines are dropped, not propagated.
func (l CartLine) Valid() bool {
	return l.ProductID > 0 && l.Quantity >= 1
}

// ItemCount sums quantities across lines.
func ItemCount(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// Subtotal sums unit price times quantity across lines, in minor units.
func Subtotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// SanitizeLines drops invalid entries and collapses duplicate product ids,
// keeping the first-seen display snapshot and accumulating quantities.
func SanitizeLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if !l.Valid() {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// Product is a catalog summary record used by the recommendation builder.
type Product struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Brand         string     `db:"brand" json:"brand"`
	Slug          string     `db:"slug" json:"slug"`
	Price         int64      `db:"price" json:"price"`
	ImageURL      string     `db:"image_url" json:"image_url"`
	Gender        string     `db:"gender" json:"gender"`
	Concentration string     `db:"concentration" json:"concentration"`
	ScentNotes    ScentNotes `db:"-" json:"scent_notes"`
	IsTrending    bool       `db:"is_trending" json:"is_trending"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ViewedProduct is one entry in the recently-viewed history.
type ViewedProduct struct {
	ProductID   int64     `json:"product_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	ScentFamily []string  `json:"scent_family"`
	ViewedAt    time.Time `json:"viewed_at"`
}

// PreferenceKind selects one of the four preference counter mappings.
type PreferenceKind string

const (
	PreferenceScent    PreferenceKind = "scent"
	PreferenceBrand    PreferenceKind = "brand"
	PreferenceOccasion PreferenceKind = "occasion"
	PreferenceMood     PreferenceKind = "mood"
)

// ValidPreferenceKind reports whether k names a known counter mapping.
func ValidPreferenceKind(k PreferenceKind) bool {
	switch k {
	case PreferenceScent, PreferenceBrand, PreferenceOccasion, PreferenceMood:
		return true
	}
	return false
}

// AuthStatus is the three-valued session signal owned by the identity
// collaborator. The cart engine only observes transitions between values.
type AuthStatus string

const (
	AuthLoading         AuthStatus = "loading"
	AuthAuthenticated   AuthStatus = "authenticated"
	AuthUnauthenticated AuthStatus = "unauthenticated"
)

// ParseAuthStatus normalizes a raw status string, defaulting to loading so an
// unrecognized value never triggers a transition.
func ParseAuthStatus(raw string) AuthStatus {
	switch AuthStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case AuthAuthenticated:
		return AuthAuthenticated
	case AuthUnauthenticated:
		return AuthUnauthenticated
	}
	return AuthLoading
}
