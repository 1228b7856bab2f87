package query

import (
	"context"
	"testing"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleMutation builds a mutation of each op with representative arguments
func sampleMutation(op Op) Mutation {
	return Mutation{Op: op, TitleID: 42, Principal: "alice"}
}

func TestInvalidationEdges_EveryOpDeclared(t *testing.T) {
	ops := Ops()
	require.ElementsMatch(t, []Op{OpAddTitle, OpUpdateTitle, OpDeleteTitle, OpRateTitle, OpSaveMyProfile}, ops)

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			patterns, err := sampleMutation(op).Invalidates()
			require.NoError(t, err)
			assert.NotEmpty(t, patterns)
		})
	}
}

func TestInvalidationEdges_Coverage(t *testing.T) {
	id := domain.TitleID(42)
	other := domain.TitleID(7)

	tests := []struct {
		op      Op
		stales  []Key
		retains []Key
	}{
		{
			op:      OpAddTitle,
			stales:  []Key{TitlesKey(), TitlesByTypeKey(domain.TitleTypeMovie), SearchKey("x")},
			retains: []Key{TitleKey(other), RatingsKey(other), ProfileKey("alice")},
		},
		{
			op:      OpUpdateTitle,
			stales:  []Key{TitleKey(id), TitlesKey(), TitlesByTypeKey(domain.TitleTypeSeries), SearchKey("x")},
			retains: []Key{TitleKey(other), RatingsKey(id)},
		},
		{
			op:      OpDeleteTitle,
			stales:  []Key{TitleKey(id), RatingsKey(id), TitlesKey(), SearchKey("x")},
			retains: []Key{TitleKey(other), RatingsKey(other), RoleKey("alice")},
		},
		{
			op:      OpRateTitle,
			stales:  []Key{RatingsKey(id), TitleKey(id), TitlesKey(), TitlesByTypeKey(domain.TitleTypeMovie), SearchKey("x")},
			retains: []Key{RatingsKey(other), TitleKey(other), ProfileKey("alice")},
		},
		{
			op:      OpSaveMyProfile,
			stales:  []Key{ProfileKey("alice")},
			retains: []Key{ProfileKey("bob"), RoleKey("alice"), TitlesKey()},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			patterns, err := sampleMutation(tt.op).Invalidates()
			require.NoError(t, err)

			matchesAny := func(k Key) bool {
				for _, p := range patterns {
					if p.Matches(k) {
						return true
					}
				}
				return false
			}
			for _, k := range tt.stales {
				assert.True(t, matchesAny(k), "expected %s staled by %s", k, tt.op)
			}
			for _, k := range tt.retains {
				assert.False(t, matchesAny(k), "expected %s untouched by %s", k, tt.op)
			}
		})
	}
}

func TestMutate_InvalidatesBeforeReturning(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	id := domain.TitleID(4)

	aggregate := 1
	fetchRatings := func(context.Context) (int, error) { return aggregate, nil }

	cached := Get(ctx, c, RatingsKey(id), fetchRatings)
	require.Equal(t, 1, cached.Value)

	err := Exec(ctx, c, RateTitle(id), func(context.Context) error {
		aggregate = 2
		return nil
	})
	require.NoError(t, err)

	peeked, _ := Peek[int](c, RatingsKey(id))
	assert.True(t, peeked.Stale, "entry must be stale as soon as the mutation returns")
	assert.NotZero(t, peeked.InvalidatedBy)

	fresh := Get(ctx, c, RatingsKey(id), fetchRatings)
	assert.Equal(t, 2, fresh.Value)
	assert.False(t, fresh.Stale)
}

func TestMutate_FailureInvalidatesNothing(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	f := &countingFetcher{}

	Get(ctx, c, TitlesKey(), f.fetch)
	Get(ctx, c, TitleKey(3), f.fetch)

	denied := &domain.AuthorizationError{Op: "deleteTitle", Err: domain.ErrUnauthorized}
	err := Exec(ctx, c, DeleteTitle(3), func(context.Context) error { return denied })

	assert.Same(t, denied, err, "error must surface unchanged")
	for _, k := range []Key{TitlesKey(), TitleKey(3)} {
		r, _ := Peek[int](c, k)
		assert.False(t, r.Stale, k.String())
		assert.Zero(t, r.InvalidatedBy)
	}
}

func TestMutate_ReturnsResult(t *testing.T) {
	c := newTestCache()
	id, err := Mutate(context.Background(), c, AddTitle(), func(context.Context) (domain.TitleID, error) {
		return 11, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TitleID(11), id)
}

func TestMutate_UnknownOp(t *testing.T) {
	c := newTestCache()
	called := false
	err := Exec(context.Background(), c, Mutation{Op: "assignRole"}, func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called, "undeclared mutations are never issued")
}

func TestMutate_SequenceStamps(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	f := &countingFetcher{}
	Get(ctx, c, TitlesKey(), f.fetch)

	require.NoError(t, Exec(ctx, c, AddTitle(), func(context.Context) error { return nil }))
	first, _ := Peek[int](c, TitlesKey())

	require.NoError(t, Exec(ctx, c, AddTitle(), func(context.Context) error { return nil }))
	second, _ := Peek[int](c, TitlesKey())

	assert.Greater(t, second.InvalidatedBy, first.InvalidatedBy)
}
