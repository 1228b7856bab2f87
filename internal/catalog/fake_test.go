package catalog

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
)

// fakeGateway is an in-memory remote catalog that counts calls per operation
type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	titles   map[domain.TitleID]domain.Title
	nextID   domain.TitleID
	ratings  map[domain.TitleID][]int
	profiles map[domain.Principal]domain.UserProfile
	admins   map[domain.Principal]bool
	uploads  map[string][]byte
	blobs    map[string][]byte
	seq      int

	// denyAll makes every admin mutation fail remotely regardless of role
	denyAll   bool
	failChunk bool
	failReads error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:    make(map[string]int),
		titles:   make(map[domain.TitleID]domain.Title),
		ratings:  make(map[domain.TitleID][]int),
		profiles: make(map[domain.Principal]domain.UserProfile),
		admins:   make(map[domain.Principal]bool),
		uploads:  make(map[string][]byte),
		blobs:    make(map[string][]byte),
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) record(op string) {
	f.calls[op]++
}

func (f *fakeGateway) requireAdmin(ctx context.Context, op string) error {
	p, ok := domain.PrincipalFromContext(ctx)
	if f.denyAll || !ok || !f.admins[p] {
		return &domain.AuthorizationError{Op: op, Err: domain.ErrUnauthorized}
	}
	return nil
}

func (f *fakeGateway) withAggregate(t domain.Title) domain.Title {
	rs := f.ratings[t.ID]
	t.RatingCount = uint64(len(rs))
	if len(rs) > 0 {
		sum := 0
		for _, r := range rs {
			sum += r
		}
		t.AverageRating = float64(sum) / float64(len(rs))
	}
	return t
}

func (f *fakeGateway) ListTitles(ctx context.Context) ([]domain.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("listTitles")
	if f.failReads != nil {
		return nil, f.failReads
	}
	out := make([]domain.Title, 0, len(f.titles))
	for id := domain.TitleID(1); id <= f.nextID; id++ {
		if t, ok := f.titles[id]; ok {
			out = append(out, f.withAggregate(t))
		}
	}
	return out, nil
}

func (f *fakeGateway) ListTitlesByType(ctx context.Context, tt domain.TitleType) ([]domain.Title, error) {
	all, err := f.ListTitles(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Title
	for _, t := range all {
		if t.Type == tt {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeGateway) SearchTitles(ctx context.Context, text string) ([]domain.Title, error) {
	f.mu.Lock()
	f.record("searchTitles")
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeGateway) GetTitle(ctx context.Context, id domain.TitleID) (*domain.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getTitle")
	t, ok := f.titles[id]
	if !ok {
		return nil, domain.ErrTitleNotFound
	}
	t = f.withAggregate(t)
	return &t, nil
}

func (f *fakeGateway) AddTitle(ctx context.Context, input domain.TitleInput) (domain.TitleID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("addTitle")
	if err := f.requireAdmin(ctx, "addTitle"); err != nil {
		return 0, err
	}
	for _, h := range []*domain.Handle{input.Video, input.CoverImage} {
		if h.Kind() != domain.HandleByURL {
			return 0, fmt.Errorf("asset not transferred")
		}
	}
	f.nextID++
	f.titles[f.nextID] = domain.Title{
		ID: f.nextID, Title: input.Title, Description: input.Description, Type: input.Type,
		Video: input.Video, CoverImage: input.CoverImage,
	}
	return f.nextID, nil
}

func (f *fakeGateway) UpdateTitle(ctx context.Context, id domain.TitleID, input domain.TitleInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("updateTitle")
	if err := f.requireAdmin(ctx, "updateTitle"); err != nil {
		return err
	}
	if _, ok := f.titles[id]; !ok {
		return domain.ErrTitleNotFound
	}
	f.titles[id] = domain.Title{
		ID: id, Title: input.Title, Description: input.Description, Type: input.Type,
		Video: input.Video, CoverImage: input.CoverImage,
	}
	return nil
}

func (f *fakeGateway) DeleteTitle(ctx context.Context, id domain.TitleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deleteTitle")
	if err := f.requireAdmin(ctx, "deleteTitle"); err != nil {
		return err
	}
	delete(f.titles, id)
	delete(f.ratings, id)
	return nil
}

func (f *fakeGateway) GetRatings(ctx context.Context, id domain.TitleID) (*domain.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getRatings")
	t, ok := f.titles[id]
	if !ok {
		return nil, domain.ErrTitleNotFound
	}
	t = f.withAggregate(t)
	if t.RatingCount == 0 {
		return nil, nil
	}
	return &domain.Rating{AverageRating: t.AverageRating, RatingCount: t.RatingCount}, nil
}

func (f *fakeGateway) RateTitle(ctx context.Context, id domain.TitleID, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rateTitle")
	if _, ok := domain.PrincipalFromContext(ctx); !ok {
		return &domain.AuthorizationError{Op: "rateTitle", Err: domain.ErrUnauthorized}
	}
	f.ratings[id] = append(f.ratings[id], rating)
	return nil
}

func (f *fakeGateway) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getMyProfile")
	p, _ := domain.PrincipalFromContext(ctx)
	prof, ok := f.profiles[p]
	if !ok {
		return nil, nil
	}
	return &prof, nil
}

func (f *fakeGateway) SaveMyProfile(ctx context.Context, profile domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("saveMyProfile")
	p, _ := domain.PrincipalFromContext(ctx)
	f.profiles[p] = profile
	return nil
}

func (f *fakeGateway) GetMyRole(ctx context.Context) (domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getMyRole")
	p, ok := domain.PrincipalFromContext(ctx)
	switch {
	case !ok:
		return domain.RoleGuest, nil
	case f.admins[p]:
		return domain.RoleAdmin, nil
	default:
		return domain.RoleUser, nil
	}
}

func (f *fakeGateway) BeginUpload(ctx context.Context, size int64, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("beginUpload")
	f.seq++
	id := fmt.Sprintf("u%d", f.seq)
	f.uploads[id] = nil
	return id, nil
}

func (f *fakeGateway) UploadChunk(ctx context.Context, uploadID string, index int, offset int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("uploadChunk")
	if f.failChunk {
		return fmt.Errorf("connection reset")
	}
	f.uploads[uploadID] = append(f.uploads[uploadID], data...)
	return nil
}

func (f *fakeGateway) CompleteUpload(ctx context.Context, uploadID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("completeUpload")
	url := "mem://" + uploadID
	f.blobs[url] = bytes.Clone(f.uploads[uploadID])
	delete(f.uploads, uploadID)
	return url, nil
}

func (f *fakeGateway) AbortUpload(ctx context.Context, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("abortUpload")
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeGateway) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[url]
	if !ok {
		return nil, domain.ErrTitleNotFound
	}
	return b, nil
}
