package domain

import (
	"context"
)

// TitleRepository provides read and write access to catalog titles
type TitleRepository interface {
	// ListTitles returns every title in the catalog
	ListTitles(ctx context.Context) ([]Title, error)

	// ListTitlesByType returns titles of a single type
	ListTitlesByType(ctx context.Context, t TitleType) ([]Title, error)

	// SearchTitles returns titles matching free text (ranking is the server's concern)
	SearchTitles(ctx context.Context, text string) ([]Title, error)

	// GetTitle returns a single title or ErrTitleNotFound
	GetTitle(ctx context.Context, id TitleID) (*Title, error)

	// AddTitle creates a title and returns its issued id (admin only)
	AddTitle(ctx context.Context, input TitleInput) (TitleID, error)

	// UpdateTitle replaces a title's fields (admin only)
	UpdateTitle(ctx context.Context, id TitleID, input TitleInput) error

	// DeleteTitle removes a title (admin only)
	DeleteTitle(ctx context.Context, id TitleID) error
}

// RatingRepository submits individual ratings and reads aggregates
type RatingRepository interface {
	// GetRatings returns the aggregate, or nil when the title has no ratings
	GetRatings(ctx context.Context, id TitleID) (*Rating, error)

	// RateTitle records the caller's rating (1..5) for a title
	RateTitle(ctx context.Context, id TitleID, rating int) error
}

// ProfileRepository manages the caller's own profile
type ProfileRepository interface {
	// GetMyProfile returns nil when the caller has not set up a profile yet
	GetMyProfile(ctx context.Context) (*UserProfile, error)
	SaveMyProfile(ctx context.Context, profile UserProfile) error
}

// RoleRepository resolves the caller's role
type RoleRepository interface {
	GetMyRole(ctx context.Context) (Role, error)
}

// BlobRepository is the chunked binary storage contract used by uploads.
// Chunks of one upload are sent sequentially; a completed upload yields a URL.
type BlobRepository interface {
	BlobReader

	// BeginUpload opens an upload session for size bytes
	BeginUpload(ctx context.Context, size int64, contentType string) (string, error)

	// UploadChunk sends chunk index (0-based) at offset. Returns once acknowledged.
	UploadChunk(ctx context.Context, uploadID string, index int, offset int64, data []byte) error

	// CompleteUpload assembles the chunks and returns the stored asset URL
	CompleteUpload(ctx context.Context, uploadID string) (string, error)

	// AbortUpload discards a partial upload so no partial asset is referenceable
	AbortUpload(ctx context.Context, uploadID string) error
}
