package eventstore

import (
	"github.com/authapp/zitadel/internal/eventstore/repository"
)

// SearchQueryBuilder builds the Filter language from spec.md §4.1:
// inclusive lower bound on position, optional upper bound, set
// membership on instance_id/aggregate_type/aggregate_id/event_type/
// editor_user, limit and direction.
type SearchQueryBuilder struct {
	instanceIDs    []string
	aggregateTypes []string
	aggregateIDs   []string
	eventTypes     []string
	editorUsers    []string
	fromIncl       *Position
	toExcl         *Position
	limit          uint64
	desc           bool
}

// NewSearchQueryBuilder starts an empty filter; every With* method
// returns the same builder for chaining.
func NewSearchQueryBuilder() *SearchQueryBuilder {
	return &SearchQueryBuilder{}
}

func (b *SearchQueryBuilder) InstanceID(id string) *SearchQueryBuilder {
	b.instanceIDs = []string{id}
	return b
}

func (b *SearchQueryBuilder) InstanceIDs(ids ...string) *SearchQueryBuilder {
	b.instanceIDs = ids
	return b
}

func (b *SearchQueryBuilder) AggregateTypes(types ...AggregateType) *SearchQueryBuilder {
	b.aggregateTypes = toStrings(types)
	return b
}

func (b *SearchQueryBuilder) AggregateIDs(ids ...string) *SearchQueryBuilder {
	b.aggregateIDs = ids
	return b
}

func (b *SearchQueryBuilder) EventTypes(types ...EventType) *SearchQueryBuilder {
	b.eventTypes = make([]string, len(types))
	for i, t := range types {
		b.eventTypes[i] = string(t)
	}
	return b
}

func (b *SearchQueryBuilder) EditorUsers(users ...string) *SearchQueryBuilder {
	b.editorUsers = users
	return b
}

// PositionAtLeast sets the inclusive lower bound (position >= p).
func (b *SearchQueryBuilder) PositionAtLeast(p Position) *SearchQueryBuilder {
	b.fromIncl = &p
	return b
}

// PositionBefore sets the exclusive upper bound (position < p).
func (b *SearchQueryBuilder) PositionBefore(p Position) *SearchQueryBuilder {
	b.toExcl = &p
	return b
}

func (b *SearchQueryBuilder) Limit(n uint64) *SearchQueryBuilder {
	b.limit = n
	return b
}

func (b *SearchQueryBuilder) GetLimit() uint64 { return b.limit }

func (b *SearchQueryBuilder) Desc() *SearchQueryBuilder {
	b.desc = true
	return b
}

// Clone returns an independent copy, used by Stream to advance the
// cursor across batches without mutating the caller's builder.
func (b *SearchQueryBuilder) Clone() *SearchQueryBuilder {
	cp := *b
	return &cp
}

func (b *SearchQueryBuilder) toRepositoryFilter() *repository.Filter {
	f := &repository.Filter{
		InstanceIDs:    b.instanceIDs,
		AggregateTypes: b.aggregateTypes,
		AggregateIDs:   b.aggregateIDs,
		EventTypes:     b.eventTypes,
		EditorUsers:    b.editorUsers,
		Limit:          b.limit,
		Desc:           b.desc,
	}
	if b.fromIncl != nil {
		rp := toRepoPosition(*b.fromIncl)
		f.FromPositionIncl = &rp
	}
	if b.toExcl != nil {
		rp := toRepoPosition(*b.toExcl)
		f.ToPositionExcl = &rp
	}
	return f
}

func toRepoPosition(p Position) repository.Position {
	whole, frac := p.Decimal.Truncate(0), p.Decimal.Sub(p.Decimal.Truncate(0)).Shift(subOrderScale)
	return repository.Position{Whole: whole.IntPart(), Frac: int(frac.IntPart())}
}

func toStrings(types []AggregateType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
