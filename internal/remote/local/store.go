package local

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketTitles   = []byte("titles")
	bucketRatings  = []byte("ratings") // nested per title: principal -> rating
	bucketProfiles = []byte("profiles")
	bucketUploads  = []byte("uploads") // nested per upload: meta + chunks
	bucketBlobs    = []byte("blobs")
)

const dbFile = "catalog.db"

// titleRecord is the persisted form of a title
type titleRecord struct {
	ID            uint64 `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	VideoURL      string `json:"videoUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

// Store is an embedded single-user catalog backed by BoltDB. It enforces the
// same access rules a remote catalog would: title and blob mutations are
// admin-only, ratings and profiles need an identity.
type Store struct {
	db     *bolt.DB
	admins map[domain.Principal]bool
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog database in dir.
// Principals listed in admins resolve to the admin role.
func Open(dir string, admins []string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, dbFile), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTitles, bucketRatings, bucketProfiles, bucketUploads, bucketBlobs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	set := make(map[domain.Principal]bool, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[domain.Principal(a)] = true
		}
	}
	return &Store{db: db, admins: set, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// === Access rules ===

func (s *Store) roleOf(ctx context.Context) (domain.Principal, domain.Role) {
	p, ok := domain.PrincipalFromContext(ctx)
	switch {
	case !ok:
		return "", domain.RoleGuest
	case s.admins[p]:
		return p, domain.RoleAdmin
	default:
		return p, domain.RoleUser
	}
}

func (s *Store) requireAdmin(ctx context.Context, op string) error {
	p, role := s.roleOf(ctx)
	if role != domain.RoleAdmin {
		s.logger.Warn("rejected admin operation", "op", op, "principal", p, "role", role)
		return &domain.AuthorizationError{Op: op, Err: domain.ErrUnauthorized}
	}
	return nil
}

func (s *Store) requireIdentity(ctx context.Context, op string) (domain.Principal, error) {
	p, role := s.roleOf(ctx)
	if role == domain.RoleGuest {
		return "", &domain.AuthorizationError{Op: op, Err: domain.ErrUnauthorized}
	}
	return p, nil
}

func (s *Store) GetMyRole(ctx context.Context) (domain.Role, error) {
	_, role := s.roleOf(ctx)
	return role, nil
}

// === Generic helpers ===

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func getJSON(b *bolt.Bucket, key []byte, dest any) (bool, error) {
	v := b.Get(key)
	if v == nil {
		return false, nil
	}
	if err := json.Unmarshal(v, dest); err != nil {
		return false, fmt.Errorf("corrupt record %q: %w", key, err)
	}
	return true, nil
}

func putJSON(b *bolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// === Titles ===

func validateInput(input domain.TitleInput) (titleRecord, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return titleRecord{}, domain.NewValidationError("", "all fields required")
	}
	if !input.Type.Valid() {
		return titleRecord{}, domain.NewValidationError("type", "unknown title type")
	}
	if input.Video == nil || input.CoverImage == nil {
		return titleRecord{}, domain.NewValidationError("", "all fields required")
	}
	video, err := input.Video.ResolveURL()
	if err != nil {
		return titleRecord{}, err
	}
	cover, err := input.CoverImage.ResolveURL()
	if err != nil {
		return titleRecord{}, err
	}
	return titleRecord{
		Title:         input.Title,
		Description:   input.Description,
		Type:          string(input.Type),
		VideoURL:      video,
		CoverImageURL: cover,
	}, nil
}

func (s *Store) toTitle(tx *bolt.Tx, rec titleRecord) (domain.Title, error) {
	agg, err := aggregate(tx, rec.ID)
	if err != nil {
		return domain.Title{}, err
	}
	t := domain.Title{
		ID:          domain.TitleID(rec.ID),
		Title:       rec.Title,
		Description: rec.Description,
		Type:        domain.TitleType(rec.Type),
		Video:       domain.FromURL(rec.VideoURL),
		CoverImage:  domain.FromURL(rec.CoverImageURL),
	}
	if agg != nil {
		t.AverageRating = agg.AverageRating
		t.RatingCount = agg.RatingCount
	}
	return t, nil
}

func (s *Store) scanTitles(match func(titleRecord) bool) ([]domain.Title, error) {
	titles := []domain.Title{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTitles).ForEach(func(k, v []byte) error {
			var rec titleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt title %x: %w", k, err)
			}
			if !match(rec) {
				return nil
			}
			t, err := s.toTitle(tx, rec)
			if err != nil {
				return err
			}
			titles = append(titles, t)
			return nil
		})
	})
	return titles, err
}

func (s *Store) ListTitles(ctx context.Context) ([]domain.Title, error) {
	return s.scanTitles(func(titleRecord) bool { return true })
}

func (s *Store) ListTitlesByType(ctx context.Context, t domain.TitleType) ([]domain.Title, error) {
	return s.scanTitles(func(rec titleRecord) bool { return rec.Type == string(t) })
}

// SearchTitles matches text case-insensitively against names and descriptions
func (s *Store) SearchTitles(ctx context.Context, text string) ([]domain.Title, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	return s.scanTitles(func(rec titleRecord) bool {
		return needle != "" &&
			(strings.Contains(strings.ToLower(rec.Title), needle) ||
				strings.Contains(strings.ToLower(rec.Description), needle))
	})
}

func (s *Store) GetTitle(ctx context.Context, id domain.TitleID) (*domain.Title, error) {
	var title *domain.Title
	err := s.db.View(func(tx *bolt.Tx) error {
		var rec titleRecord
		ok, err := getJSON(tx.Bucket(bucketTitles), itob(uint64(id)), &rec)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTitleNotFound
		}
		t, err := s.toTitle(tx, rec)
		if err != nil {
			return err
		}
		title = &t
		return nil
	})
	return title, err
}

func (s *Store) AddTitle(ctx context.Context, input domain.TitleInput) (domain.TitleID, error) {
	if err := s.requireAdmin(ctx, "addTitle"); err != nil {
		return 0, err
	}
	rec, err := validateInput(input)
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTitles)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		return putJSON(b, itob(id), rec)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("title added", "id", rec.ID, "title", rec.Title)
	return domain.TitleID(rec.ID), nil
}

func (s *Store) UpdateTitle(ctx context.Context, id domain.TitleID, input domain.TitleInput) error {
	if err := s.requireAdmin(ctx, "updateTitle"); err != nil {
		return err
	}
	rec, err := validateInput(input)
	if err != nil {
		return err
	}
	rec.ID = uint64(id)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTitles)
		if b.Get(itob(rec.ID)) == nil {
			return domain.ErrTitleNotFound
		}
		return putJSON(b, itob(rec.ID), rec)
	})
}

func (s *Store) DeleteTitle(ctx context.Context, id domain.TitleID) error {
	if err := s.requireAdmin(ctx, "deleteTitle"); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := itob(uint64(id))
		b := tx.Bucket(bucketTitles)
		if b.Get(key) == nil {
			return domain.ErrTitleNotFound
		}
		if err := b.Delete(key); err != nil {
			return err
		}
		ratings := tx.Bucket(bucketRatings)
		if ratings.Bucket(key) != nil {
			return ratings.DeleteBucket(key)
		}
		return nil
	})
}

// === Ratings ===

// aggregate computes the rating aggregate; nil when unrated
func aggregate(tx *bolt.Tx, id uint64) (*domain.Rating, error) {
	b := tx.Bucket(bucketRatings).Bucket(itob(id))
	if b == nil {
		return nil, nil
	}
	var sum, count uint64
	err := b.ForEach(func(_, v []byte) error {
		if len(v) != 1 {
			return fmt.Errorf("corrupt rating for title %d", id)
		}
		sum += uint64(v[0])
		count++
		return nil
	})
	if err != nil || count == 0 {
		return nil, err
	}
	return &domain.Rating{AverageRating: float64(sum) / float64(count), RatingCount: count}, nil
}

func (s *Store) GetRatings(ctx context.Context, id domain.TitleID) (*domain.Rating, error) {
	var rating *domain.Rating
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTitles).Get(itob(uint64(id))) == nil {
			return domain.ErrTitleNotFound
		}
		var err error
		rating, err = aggregate(tx, uint64(id))
		return err
	})
	return rating, err
}

// RateTitle records the caller's rating, replacing any earlier one
func (s *Store) RateTitle(ctx context.Context, id domain.TitleID, rating int) error {
	p, err := s.requireIdentity(ctx, "rateTitle")
	if err != nil {
		return err
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.NewValidationError("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := itob(uint64(id))
		if tx.Bucket(bucketTitles).Get(key) == nil {
			return domain.ErrTitleNotFound
		}
		b, err := tx.Bucket(bucketRatings).CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}
		return b.Put([]byte(p), []byte{byte(rating)})
	})
}

// === Profiles ===

func (s *Store) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	p, err := s.requireIdentity(ctx, "getMyProfile")
	if err != nil {
		return nil, err
	}
	var profile *domain.UserProfile
	err = s.db.View(func(tx *bolt.Tx) error {
		var prof domain.UserProfile
		ok, err := getJSON(tx.Bucket(bucketProfiles), []byte(p), &prof)
		if ok {
			profile = &prof
		}
		return err
	})
	return profile, err
}

func (s *Store) SaveMyProfile(ctx context.Context, profile domain.UserProfile) error {
	p, err := s.requireIdentity(ctx, "saveMyProfile")
	if err != nil {
		return err
	}
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProfiles), []byte(p), profile)
	})
}
