package command

import (
	"context"
	"sync"
	"time"

	"github.com/authapp/zitadel/internal/eventstore/repository"
	"github.com/authapp/zitadel/internal/zerrors"
)

// fakeRepo is a minimal in-memory repository.Repository used to drive
// command tests without a database, enforcing the same two invariants
// the SQL repository does: per-aggregate gapless sequence under
// optimistic concurrency, and unique-constraint reservation.
type fakeRepo struct {
	mu        sync.Mutex
	events    []*repository.Event
	uniques   map[string]struct{} // instanceID/uniqueType/uniqueField
	nextEvtID int

	// failNextPush, when set, is returned once (then cleared) by Push --
	// used to inject an error such as a ConcurrencyConflict without a
	// second writer.
	failNextPush error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{uniques: make(map[string]struct{})}
}

func (f *fakeRepo) uniqueKey(instanceID, typ, field string) string {
	return instanceID + "/" + typ + "/" + field
}

func (f *fakeRepo) Push(ctx context.Context, writes ...*repository.Write) ([]*repository.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNextPush != nil {
		err := f.failNextPush
		f.failNextPush = nil
		return nil, err
	}

	maxSeq := map[string]uint64{}
	for _, e := range f.events {
		key := e.InstanceID + "/" + e.AggregateType + "/" + e.AggregateID
		if e.Sequence > maxSeq[key] {
			maxSeq[key] = e.Sequence
		}
	}

	for _, w := range writes {
		key := w.InstanceID + "/" + w.AggregateType + "/" + w.AggregateID
		if w.HasExpectation && maxSeq[key] != w.ExpectedSequence {
			return nil, zerrors.ThrowConcurrencyConflict(nil, "FAKE-Seq01", "Errors.Internal")
		}
		for _, op := range w.UniqueOps {
			ukey := f.uniqueKey(w.InstanceID, op.UniqueType, op.UniqueField)
			switch repository.UniqueOp(op).Action {
			case 0: // UniqueConstraintAdd
				if _, exists := f.uniques[ukey]; exists {
					return nil, zerrors.ThrowUniqueConstraintViolation(nil, "FAKE-Uniq01", op.ErrorMessage)
				}
			}
		}
	}

	now := time.Now()
	stored := make([]*repository.Event, len(writes))
	for i, w := range writes {
		key := w.InstanceID + "/" + w.AggregateType + "/" + w.AggregateID
		maxSeq[key]++
		f.nextEvtID++
		se := &repository.Event{
			ID:            itoa(f.nextEvtID),
			Typ:           w.EventType,
			Sequence:      maxSeq[key],
			PositionWhole: now.UnixNano(),
			PositionFrac:  i,
			Data:          w.Data,
			EditorUser:    w.EditorUser,
			EditorService: w.EditorService,
			ResourceOwner: w.ResourceOwner,
			InstanceID:    w.InstanceID,
			AggregateID:   w.AggregateID,
			AggregateType: w.AggregateType,
			Version:       w.Version,
			CreationDate:  now,
			CommandID:     w.CommandID,
		}
		for _, op := range w.UniqueOps {
			ukey := f.uniqueKey(w.InstanceID, op.UniqueType, op.UniqueField)
			switch repository.UniqueOp(op).Action {
			case 0:
				f.uniques[ukey] = struct{}{}
			case 1:
				delete(f.uniques, ukey)
			case 2:
				for k := range f.uniques {
					if len(k) >= len(w.InstanceID) && k[:len(w.InstanceID)] == w.InstanceID {
						delete(f.uniques, k)
					}
				}
			}
		}
		f.events = append(f.events, se)
		stored[i] = se
	}
	return stored, nil
}

func (f *fakeRepo) Filter(ctx context.Context, flt *repository.Filter) ([]*repository.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*repository.Event
	for _, e := range f.events {
		if !matchesAny(flt.InstanceIDs, e.InstanceID) {
			continue
		}
		if !matchesAny(flt.AggregateTypes, e.AggregateType) {
			continue
		}
		if !matchesAny(flt.AggregateIDs, e.AggregateID) {
			continue
		}
		if !matchesAny(flt.EventTypes, e.Typ) {
			continue
		}
		if flt.FromPositionIncl != nil && positionLess(e, *flt.FromPositionIncl) {
			continue
		}
		out = append(out, e)
		if flt.Limit > 0 && uint64(len(out)) >= flt.Limit {
			break
		}
	}
	return out, nil
}

func positionLess(e *repository.Event, p repository.Position) bool {
	if e.PositionWhole != p.Whole {
		return e.PositionWhole < p.Whole
	}
	return e.PositionFrac < p.Frac
}

func matchesAny(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (f *fakeRepo) LatestPosition(ctx context.Context, flt *repository.Filter) (repository.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pos repository.Position
	for _, e := range f.events {
		if !matchesAny(flt.InstanceIDs, e.InstanceID) {
			continue
		}
		if e.PositionWhole > pos.Whole || (e.PositionWhole == pos.Whole && e.PositionFrac > pos.Frac) {
			pos = repository.Position{Whole: e.PositionWhole, Frac: e.PositionFrac}
		}
	}
	return pos, nil
}

func (f *fakeRepo) Health(ctx context.Context) error { return nil }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
