package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/session"
	"github.com/mmcdole/marquee/internal/upload"
)

// Gateway is the full remote access boundary
type Gateway interface {
	domain.TitleRepository
	domain.RatingRepository
	domain.ProfileRepository
	domain.RoleRepository
	domain.BlobRepository
}

// Service is the typed read and mutation surface over the remote catalog.
// Reads go through the query cache; mutations invalidate it.
type Service struct {
	remote  Gateway
	cache   *query.Cache
	gate    *session.Gate
	uploads *upload.Engine
	logger  *slog.Logger
}

// NewService creates a new catalog service.
func NewService(remote Gateway, cache *query.Cache, gate *session.Gate, uploads *upload.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{remote: remote, cache: cache, gate: gate, uploads: uploads, logger: logger}
}

// Gate returns the session gate
func (s *Service) Gate() *session.Gate { return s.gate }

// Uploads returns the upload engine
func (s *Service) Uploads() *upload.Engine { return s.uploads }

// --- Reads ---

func (s *Service) Titles(ctx context.Context) query.Result[[]domain.Title] {
	return query.Get(ctx, s.cache, query.TitlesKey(), func(ctx context.Context) ([]domain.Title, error) {
		return s.remote.ListTitles(s.gate.Context(ctx))
	})
}

func (s *Service) TitlesByType(ctx context.Context, t domain.TitleType) query.Result[[]domain.Title] {
	return query.Get(ctx, s.cache, query.TitlesByTypeKey(t), func(ctx context.Context) ([]domain.Title, error) {
		return s.remote.ListTitlesByType(s.gate.Context(ctx), t)
	}, query.Enabled(t.Valid()))
}

// Search queries the remote side. Blank text is a disabled read.
func (s *Service) Search(ctx context.Context, text string) query.Result[[]domain.Title] {
	text = strings.TrimSpace(text)
	return query.Get(ctx, s.cache, query.SearchKey(text), func(ctx context.Context) ([]domain.Title, error) {
		return s.remote.SearchTitles(s.gate.Context(ctx), text)
	}, query.Enabled(text != ""))
}

func (s *Service) Title(ctx context.Context, id domain.TitleID) query.Result[*domain.Title] {
	return query.Get(ctx, s.cache, query.TitleKey(id), func(ctx context.Context) (*domain.Title, error) {
		return s.remote.GetTitle(s.gate.Context(ctx), id)
	})
}

// Ratings returns the aggregate; a nil value means the title is unrated
func (s *Service) Ratings(ctx context.Context, id domain.TitleID) query.Result[*domain.Rating] {
	return query.Get(ctx, s.cache, query.RatingsKey(id), func(ctx context.Context) (*domain.Rating, error) {
		return s.remote.GetRatings(s.gate.Context(ctx), id)
	})
}

// MyProfile reads the caller's profile. Disabled without an identity.
func (s *Service) MyProfile(ctx context.Context) query.Result[*domain.UserProfile] {
	p, ok := s.gate.Principal()
	return query.Get(ctx, s.cache, query.ProfileKey(p), func(ctx context.Context) (*domain.UserProfile, error) {
		return s.remote.GetMyProfile(domain.WithPrincipal(ctx, p))
	}, query.Enabled(ok))
}

// NeedsProfileSetup reports whether an authenticated caller has no profile yet
func (s *Service) NeedsProfileSetup(ctx context.Context) (bool, error) {
	if _, ok := s.gate.Principal(); !ok {
		return false, nil
	}
	res := s.MyProfile(ctx)
	if res.Err != nil {
		return false, res.Err
	}
	return res.HasValue && res.Value == nil, nil
}

// FilterCached fuzzy-filters the already-cached title list without a remote call
func (s *Service) FilterCached(text string, types ...domain.TitleType) []search.Match {
	res, ok := query.Peek[[]domain.Title](s.cache, query.TitlesKey())
	if !ok || !res.HasValue {
		return nil
	}
	return search.NewIndex(res.Value).Filter(text, types...)
}

// Refresh marks key stale so the next read refetches. This is the manual
// retry path for failed reads.
func (s *Service) Refresh(key query.Key) {
	s.cache.Invalidate(query.Exact(key))
	s.logger.Info("refresh requested", "key", key.String())
}

// --- Mutations ---

// Rate submits the caller's rating for a title
func (s *Service) Rate(ctx context.Context, id domain.TitleID, rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.NewValidationError("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if err := s.gate.CheckCanAttempt(string(query.OpRateTitle)); err != nil {
		return err
	}
	return query.Exec(s.gate.Context(ctx), s.cache, query.RateTitle(id), func(ctx context.Context) error {
		return s.remote.RateTitle(ctx, id, rating)
	})
}

// SaveProfile stores the caller's display name
func (s *Service) SaveProfile(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	if err := s.gate.CheckCanAttempt(string(query.OpSaveMyProfile)); err != nil {
		return err
	}
	p, _ := s.gate.Principal()
	return query.Exec(domain.WithPrincipal(ctx, p), s.cache, query.SaveMyProfile(p), func(ctx context.Context) error {
		return s.remote.SaveMyProfile(ctx, domain.UserProfile{Name: name})
	})
}

// Delete removes a title. A remote rejection is returned as-is.
func (s *Service) Delete(ctx context.Context, id domain.TitleID) error {
	if err := s.gate.CheckCanAttempt(string(query.OpDeleteTitle)); err != nil {
		return err
	}
	return query.Exec(s.gate.Context(ctx), s.cache, query.DeleteTitle(id), func(ctx context.Context) error {
		return s.remote.DeleteTitle(ctx, id)
	})
}

// Publish validates the draft, uploads its pending assets and adds the title
func (s *Service) Publish(ctx context.Context, draft Draft) (domain.TitleID, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}
	if err := s.gate.CheckCanAttempt(string(query.OpAddTitle)); err != nil {
		return 0, err
	}

	input, err := s.stage(ctx, draft)
	if err != nil {
		return 0, err
	}

	id, err := query.Mutate(s.gate.Context(ctx), s.cache, query.AddTitle(), func(ctx context.Context) (domain.TitleID, error) {
		return s.remote.AddTitle(ctx, input)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("title published", "id", id, "title", input.Title)
	return id, nil
}

// Update replaces a title. Assets given by URL are kept as they are.
func (s *Service) Update(ctx context.Context, id domain.TitleID, draft Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	if err := s.gate.CheckCanAttempt(string(query.OpUpdateTitle)); err != nil {
		return err
	}

	input, err := s.stage(ctx, draft)
	if err != nil {
		return err
	}

	return query.Exec(s.gate.Context(ctx), s.cache, query.UpdateTitle(id), func(ctx context.Context) error {
		return s.remote.UpdateTitle(ctx, id, input)
	})
}

// stage transfers pending assets concurrently and returns the input with
// by-URL handles only.
func (s *Service) stage(ctx context.Context, draft Draft) (domain.TitleInput, error) {
	stored, err := s.uploads.TransferAll(ctx, draft.Video, draft.CoverImage)
	if err != nil {
		s.logger.Error("asset upload failed", "title", draft.Title, "error", err)
		return domain.TitleInput{}, err
	}
	for _, h := range stored {
		if _, err := h.ResolveURL(); err != nil {
			return domain.TitleInput{}, err
		}
	}
	return domain.TitleInput{
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Type:        draft.Type,
		Video:       stored[0],
		CoverImage:  stored[1],
	}, nil
}
