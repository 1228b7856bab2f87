package domain

import (
	"fmt"
	"strconv"
)

// TitleID is issued by the remote store, monotonically increasing
type TitleID uint64

// String returns the decimal form used in cache keys and URLs
func (id TitleID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseTitleID parses a decimal title identifier
func ParseTitleID(s string) (TitleID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid title id %q: %w", s, err)
	}
	return TitleID(n), nil
}

// TitleType distinguishes movies from series
type TitleType string

const (
	TitleTypeMovie  TitleType = "movie"
	TitleTypeSeries TitleType = "series"
)

// Valid reports whether t is one of the known title types
func (t TitleType) Valid() bool {
	return t == TitleTypeMovie || t == TitleTypeSeries
}

// Label returns the display label for the type
func (t TitleType) Label() string {
	switch t {
	case TitleTypeMovie:
		return "Movie"
	case TitleTypeSeries:
		return "Series"
	default:
		return "Unknown"
	}
}

// Title is an immutable snapshot of a catalog record owned by the remote store
type Title struct {
	ID            TitleID
	Title         string
	Description   string
	Type          TitleType
	Video         *Handle
	CoverImage    *Handle
	AverageRating float64 // 0.0 unless rated
	RatingCount   uint64
}

// FormattedRating returns the aggregate in "4.2 (12)" form, or "unrated"
func (t Title) FormattedRating() string {
	if t.RatingCount == 0 {
		return "unrated"
	}
	return fmt.Sprintf("%.1f (%d)", t.AverageRating, t.RatingCount)
}

// TitleInput is the payload of addTitle/updateTitle.
// Video and CoverImage must be by-URL handles by the time it reaches a repository.
type TitleInput struct {
	Title       string
	Description string
	Type        TitleType
	Video       *Handle
	CoverImage  *Handle
}

// Rating is the aggregate computed by the remote store for a title
type Rating struct {
	AverageRating float64
	RatingCount   uint64
}

const (
	MinRating = 1
	MaxRating = 5
)

// UserProfile is created lazily on the first authenticated visit
type UserProfile struct {
	Name string
}

// Role is the authorization verdict resolved by the remote store
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a wire value to a Role. Unknown values resolve to guest,
// never to a more privileged role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleGuest
	}
}
