package local

import (
	"bytes"
	"context"
	"testing"

	"github.com/mmcdole/marquee/internal/catalog"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/session"
	"github.com/mmcdole/marquee/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), []string{"root"}, log.NullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	asAdmin = domain.WithPrincipal(context.Background(), "root")
	asAlice = domain.WithPrincipal(context.Background(), "alice")
	asBob   = domain.WithPrincipal(context.Background(), "bob")
	asGuest = context.Background()
)

func sampleInput(name string) domain.TitleInput {
	return domain.TitleInput{
		Title:       name,
		Description: name + " description",
		Type:        domain.TitleTypeMovie,
		Video:       domain.FromURL(BlobScheme + "v"),
		CoverImage:  domain.FromURL(BlobScheme + "c"),
	}
}

func TestRoles(t *testing.T) {
	s := openTestStore(t)
	for ctx, want := range map[context.Context]domain.Role{
		asAdmin: domain.RoleAdmin,
		asAlice: domain.RoleUser,
		asGuest: domain.RoleGuest,
	} {
		got, err := s.GetMyRole(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTitles_CRUDAndMonotonicIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.AddTitle(asAdmin, sampleInput("Alien"))
	require.NoError(t, err)
	second, err := s.AddTitle(asAdmin, sampleInput("Aliens"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	titles, err := s.ListTitles(ctx)
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, "Alien", titles[0].Title)

	in := sampleInput("Alien (1979)")
	in.Type = domain.TitleTypeSeries
	require.NoError(t, s.UpdateTitle(asAdmin, first, in))

	series, err := s.ListTitlesByType(ctx, domain.TitleTypeSeries)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Alien (1979)", series[0].Title)

	found, err := s.SearchTitles(ctx, "ALIENS")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, second, found[0].ID)

	require.NoError(t, s.DeleteTitle(asAdmin, first))
	_, err = s.GetTitle(ctx, first)
	assert.ErrorIs(t, err, domain.ErrTitleNotFound)
	assert.ErrorIs(t, s.DeleteTitle(asAdmin, first), domain.ErrTitleNotFound)

	third, err := s.AddTitle(asAdmin, sampleInput("Prometheus"))
	require.NoError(t, err)
	assert.Greater(t, third, second, "ids are never reused")
}

func TestTitles_AdminOnly(t *testing.T) {
	s := openTestStore(t)

	_, err := s.AddTitle(asAlice, sampleInput("Alien"))
	var authErr *domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, authErr.Local)

	id, err := s.AddTitle(asAdmin, sampleInput("Alien"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteTitle(asGuest, id), domain.ErrUnauthorized)
	assert.ErrorIs(t, s.UpdateTitle(asAlice, id, sampleInput("x")), domain.ErrUnauthorized)
}

func TestTitles_RejectsUntransferredAssets(t *testing.T) {
	s := openTestStore(t)
	in := sampleInput("Alien")
	in.Video = domain.FromBytes([]byte("raw"))
	_, err := s.AddTitle(asAdmin, in)
	assert.ErrorIs(t, err, domain.ErrNotTransferred)
}

func TestRatings_AggregatePerPrincipal(t *testing.T) {
	s := openTestStore(t)
	id, err := s.AddTitle(asAdmin, sampleInput("Alien"))
	require.NoError(t, err)

	rating, err := s.GetRatings(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, rating)

	require.NoError(t, s.RateTitle(asAlice, id, 2))
	require.NoError(t, s.RateTitle(asAlice, id, 4)) // replaces
	require.NoError(t, s.RateTitle(asBob, id, 5))

	rating, err = s.GetRatings(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rating)
	assert.Equal(t, uint64(2), rating.RatingCount)
	assert.InDelta(t, 4.5, rating.AverageRating, 1e-9)

	title, err := s.GetTitle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "4.5 (2)", title.FormattedRating())

	assert.ErrorIs(t, s.RateTitle(asGuest, id, 3), domain.ErrUnauthorized)
	assert.ErrorIs(t, s.RateTitle(asAlice, id, 9), domain.ErrValidation)
	assert.ErrorIs(t, s.RateTitle(asAlice, 999, 3), domain.ErrTitleNotFound)

	require.NoError(t, s.DeleteTitle(asAdmin, id))
	_, err = s.GetRatings(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrTitleNotFound)
}

func TestProfiles(t *testing.T) {
	s := openTestStore(t)

	prof, err := s.GetMyProfile(asAlice)
	require.NoError(t, err)
	assert.Nil(t, prof)

	require.NoError(t, s.SaveMyProfile(asAlice, domain.UserProfile{Name: " Alice "}))
	prof, err = s.GetMyProfile(asAlice)
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, "Alice", prof.Name)

	other, err := s.GetMyProfile(asBob)
	require.NoError(t, err)
	assert.Nil(t, other, "profiles are per identity")

	assert.ErrorIs(t, s.SaveMyProfile(asAlice, domain.UserProfile{Name: "  "}), domain.ErrValidation)
	_, err = s.GetMyProfile(asGuest)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBlobs_StageAndAssemble(t *testing.T) {
	s := openTestStore(t)

	id, err := s.BeginUpload(asAdmin, 5, "video/mp4")
	require.NoError(t, err)
	require.NoError(t, s.UploadChunk(asAdmin, id, 0, 0, []byte("hel")))
	assert.Error(t, s.UploadChunk(asAdmin, id, 2, 3, []byte("lo")), "out of sequence")
	require.NoError(t, s.UploadChunk(asAdmin, id, 1, 3, []byte("lo")))
	assert.Error(t, s.UploadChunk(asAdmin, id, 2, 5, []byte("!")), "beyond declared size")

	url, err := s.CompleteUpload(asAdmin, id)
	require.NoError(t, err)
	assert.Contains(t, url, BlobScheme)
	assert.Zero(t, s.PendingUploads())

	data, err := s.FetchBlob(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestBlobs_IncompleteAndAbort(t *testing.T) {
	s := openTestStore(t)

	id, err := s.BeginUpload(asAdmin, 10, "")
	require.NoError(t, err)
	require.NoError(t, s.UploadChunk(asAdmin, id, 0, 0, []byte("abc")))

	_, err = s.CompleteUpload(asAdmin, id)
	assert.Error(t, err, "partial asset is never referenceable")

	require.NoError(t, s.AbortUpload(asAdmin, id))
	assert.Zero(t, s.PendingUploads())
	assert.NoError(t, s.AbortUpload(asAdmin, id))

	_, err = s.BeginUpload(asAlice, 10, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, []string{"root"}, log.NullLogger())
	require.NoError(t, err)
	id, err := s.AddTitle(asAdmin, sampleInput("Alien"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir, nil, log.NullLogger())
	require.NoError(t, err)
	defer reopened.Close()

	title, err := reopened.GetTitle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alien", title.Title)

	role, _ := reopened.GetMyRole(asAdmin)
	assert.Equal(t, domain.RoleUser, role, "roles come from configuration")
}

// End to end through the catalog service, cache and upload engine
func TestCatalogService_PublishRateDelete(t *testing.T) {
	s := openTestStore(t)
	logger := log.NullLogger()
	cache := query.New(logger)
	gate := session.NewGate(s, cache, logger)
	engine := upload.NewEngine(s, upload.Config{ChunkSize: 4}, logger)
	svc := catalog.NewService(s, cache, gate, engine, logger)
	ctx := context.Background()

	require.NoError(t, gate.Resume("root"))
	assert.True(t, gate.IsAdmin(ctx))

	cover, err := engine.PrepareAsset([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"), upload.AssetImage)
	require.NoError(t, err)
	video := domain.FromBytes(bytes.Repeat([]byte("frame"), 7))

	id, err := svc.Publish(ctx, catalog.Draft{
		Title:       "Alien",
		Description: "In space no one can hear you scream",
		Type:        domain.TitleTypeMovie,
		Video:       video,
		CoverImage:  cover,
	})
	require.NoError(t, err)

	title := svc.Title(ctx, id)
	require.Equal(t, query.StatusSuccess, title.Status)
	stored, err := title.Value.Video.ReadBytes(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("frame"), 7), stored)

	require.NoError(t, gate.Logout())
	require.NoError(t, gate.Resume("alice"))
	require.NoError(t, svc.Rate(ctx, id, 4))
	ratings := svc.Ratings(ctx, id)
	require.NotNil(t, ratings.Value)
	assert.Equal(t, uint64(1), ratings.Value.RatingCount)

	err = svc.Delete(ctx, id)
	assert.Equal(t, domain.KindAuthorization, domain.Classify(err))

	require.NoError(t, gate.Logout())
	require.NoError(t, gate.Resume("root"))
	require.NoError(t, svc.Delete(ctx, id))
	gone := svc.Title(ctx, id)
	assert.ErrorIs(t, gone.Err, domain.ErrTitleNotFound)
}
