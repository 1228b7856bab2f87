package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmcdole/marquee/internal/domain"
)

// Op names a mutating remote operation
type Op string

const (
	OpAddTitle      Op = "addTitle"
	OpUpdateTitle   Op = "updateTitle"
	OpDeleteTitle   Op = "deleteTitle"
	OpRateTitle     Op = "rateTitle"
	OpSaveMyProfile Op = "saveMyProfile"
)

// Mutation is a tagged mutating call. Only the fields its Op uses are set.
type Mutation struct {
	Op        Op
	TitleID   domain.TitleID   // updateTitle, deleteTitle, rateTitle
	Principal domain.Principal // saveMyProfile
}

func AddTitle() Mutation { return Mutation{Op: OpAddTitle} }

func UpdateTitle(id domain.TitleID) Mutation { return Mutation{Op: OpUpdateTitle, TitleID: id} }

func DeleteTitle(id domain.TitleID) Mutation { return Mutation{Op: OpDeleteTitle, TitleID: id} }

func RateTitle(id domain.TitleID) Mutation { return Mutation{Op: OpRateTitle, TitleID: id} }

func SaveMyProfile(p domain.Principal) Mutation {
	return Mutation{Op: OpSaveMyProfile, Principal: p}
}

// invalidationEdges declares, per mutation, every read-key pattern whose data
// the mutation can change. Search results embed titles (and their rating
// aggregates), so every title-changing mutation stales the search family too.
var invalidationEdges = map[Op]func(Mutation) []Pattern{
	OpAddTitle: func(Mutation) []Pattern {
		return []Pattern{Family(OpTitles), Family(OpSearch)}
	},
	OpUpdateTitle: func(m Mutation) []Pattern {
		return []Pattern{Exact(TitleKey(m.TitleID)), Family(OpTitles), Family(OpSearch)}
	},
	OpDeleteTitle: func(m Mutation) []Pattern {
		return []Pattern{
			Exact(TitleKey(m.TitleID)),
			Exact(RatingsKey(m.TitleID)),
			Family(OpTitles),
			Family(OpSearch),
		}
	},
	OpRateTitle: func(m Mutation) []Pattern {
		return []Pattern{
			Exact(RatingsKey(m.TitleID)),
			Exact(TitleKey(m.TitleID)),
			Family(OpTitles),
			Family(OpSearch),
		}
	},
	OpSaveMyProfile: func(m Mutation) []Pattern {
		return []Pattern{Exact(ProfileKey(m.Principal))}
	},
}

// Ops returns every mutation operation with declared edges, sorted
func Ops() []Op {
	ops := make([]Op, 0, len(invalidationEdges))
	for op := range invalidationEdges {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Invalidates returns the patterns staled by m once it succeeds
func (m Mutation) Invalidates() ([]Pattern, error) {
	edges, ok := invalidationEdges[m.Op]
	if !ok {
		return nil, fmt.Errorf("no invalidation edges declared for %q", m.Op)
	}
	return edges(m), nil
}

// Mutate invokes call and, only after it succeeds, invalidates every pattern
// declared for m before returning. On failure nothing is invalidated and the
// error is returned unchanged.
func Mutate[R any](ctx context.Context, c *Cache, m Mutation, call func(context.Context) (R, error)) (R, error) {
	var zero R

	patterns, err := m.Invalidates()
	if err != nil {
		return zero, err
	}

	seq := c.nextSeq()
	c.logger.Debug("mutation submitted", "op", m.Op, "seq", seq)

	result, err := call(ctx)
	if err != nil {
		c.logger.Warn("mutation failed", "op", m.Op, "seq", seq, "error", err)
		return zero, err
	}

	c.applyMutation(seq, patterns)
	c.logger.Info("mutation applied", "op", m.Op, "seq", seq, "patterns", len(patterns))
	return result, nil
}

// Exec is Mutate for calls without a result
func Exec(ctx context.Context, c *Cache, m Mutation, call func(context.Context) error) error {
	_, err := Mutate(ctx, c, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}
