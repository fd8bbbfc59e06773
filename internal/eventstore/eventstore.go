// Package eventstore implements the Event Store and Unique Constraint
// Registry from spec.md §4.1/§4.2: the durable, append-only log every
// other CORE component is built on.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zitadel/logging"

	"github.com/authapp/zitadel/internal/eventstore/repository"
	"github.com/authapp/zitadel/internal/telemetry/tracing"
	"github.com/authapp/zitadel/internal/zerrors"
)

// EventMapper decodes a stored event's raw payload into its concrete
// Go type, the same role idpintent.StartedEventMapper plays in the
// teacher: BaseEventFromRepo(event) + event.Unmarshal(e).
type EventMapper func(Event) (Event, error)

// Notifier is the optional wake-up channel for stream(follow=true); the
// default implementation (see notify.go) publishes over RabbitMQ. A nil
// Notifier just means followers always fall back to polling -- never a
// correctness issue, only a latency one (spec.md §4.1 Non-goals: "no
// distributed consensus algorithm").
type Notifier interface {
	Notify(ctx context.Context, instanceID string)
	Wait(ctx context.Context, instanceID string, timeout time.Duration)
}

// Eventstore is the Event Store facade every other component depends
// on. It owns the EventMapper registry; the storage seam
// (repository.Repository) is injected so tests can substitute a mock.
type Eventstore struct {
	repo     repository.Repository
	mappers  map[AggregateType]map[EventType]EventMapper
	notifier Notifier
}

// NewEventstore wires a Repository (normally sql.NewCRDB(db)) into a
// ready-to-use Event Store. notifier may be nil.
func NewEventstore(repo repository.Repository, notifier Notifier) *Eventstore {
	return &Eventstore{
		repo:     repo,
		mappers:  make(map[AggregateType]map[EventType]EventMapper),
		notifier: notifier,
	}
}

// RegisterFilterEventMapper registers how to decode events of typ for
// aggregateType; every aggregate package calls this once per event type
// it defines (e.g. user.RegisterEventMappers(es)).
func (es *Eventstore) RegisterFilterEventMapper(aggregateType AggregateType, typ EventType, mapper EventMapper) *Eventstore {
	if _, ok := es.mappers[aggregateType]; !ok {
		es.mappers[aggregateType] = make(map[EventType]EventMapper)
	}
	es.mappers[aggregateType][typ] = mapper
	return es
}

// Push implements spec.md §4.1's push(command_id, writes[]) ->
// appended_events[]. Every command in the batch may optionally carry an
// expected_sequence (wrap with eventstore.NewSequencedCommand);
// optimistic concurrency is enforced per aggregate by the repository.
func (es *Eventstore) Push(ctx context.Context, commands ...*SequencedCommand) (events []Event, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	if len(commands) == 0 {
		return nil, nil
	}

	writes := make([]*repository.Write, len(commands))
	for i, cmd := range commands {
		data, err := marshalPayload(cmd.Payload())
		if err != nil {
			return nil, zerrors.ThrowValidation(err, "EVENT-Sfw3a", "Errors.Internal")
		}
		agg := cmd.Aggregate()
		writes[i] = &repository.Write{
			InstanceID:       agg.InstanceID,
			AggregateType:    string(agg.Type),
			AggregateID:      agg.ID,
			ExpectedSequence: cmd.ExpectedSequence,
			HasExpectation:   cmd.HasExpectation,
			EventType:        string(cmd.Type()),
			Version:          string(agg.Version),
			Data:             data,
			EditorUser:       cmd.Creator(),
			EditorService:    cmd.EditorService(),
			ResourceOwner:    agg.ResourceOwner,
			CommandID:        commandIDFromContext(ctx),
			UniqueOps:        toUniqueOps(cmd.UniqueConstraints()),
		}
	}

	stored, err := es.repo.Push(ctx, writes...)
	if err != nil {
		return nil, err
	}

	events = make([]Event, len(stored))
	instanceIDs := map[string]struct{}{}
	for i, se := range stored {
		mapped, err := es.mapEvent(se)
		if err != nil {
			return nil, err
		}
		events[i] = mapped
		instanceIDs[se.InstanceID] = struct{}{}
	}

	if es.notifier != nil {
		for id := range instanceIDs {
			es.notifier.Notify(ctx, id)
		}
	}

	return events, nil
}

// Filter implements spec.md §4.1 query().
func (es *Eventstore) Filter(ctx context.Context, q *SearchQueryBuilder) (events []Event, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	stored, err := es.repo.Filter(ctx, q.toRepositoryFilter())
	if err != nil {
		return nil, err
	}
	events = make([]Event, len(stored))
	for i, se := range stored {
		mapped, err := es.mapEvent(se)
		if err != nil {
			return nil, err
		}
		events[i] = mapped
	}
	return events, nil
}

// LatestPosition implements spec.md §4.1 latest_position(instance_id?).
func (es *Eventstore) LatestPosition(ctx context.Context, instanceID string) (Position, error) {
	f := &repository.Filter{}
	if instanceID != "" {
		f.InstanceIDs = []string{instanceID}
	}
	pos, err := es.repo.LatestPosition(ctx, f)
	if err != nil {
		return Position{}, err
	}
	return NewPositionFromRepo(pos), nil
}

// Stream implements spec.md §4.1 stream(from_position, filter): a
// finite batch iterator when follow=false, or a channel that blocks for
// new events when follow=true. The channel is closed when ctx is done
// or ctx's deadline passes; callers must drain it to avoid a goroutine
// leak, the same contract as any Go fan-out channel.
func (es *Eventstore) Stream(ctx context.Context, from Position, q *SearchQueryBuilder, follow bool, batchSize uint64) <-chan StreamResult {
	out := make(chan StreamResult)
	go func() {
		defer close(out)
		cursor := from
		for {
			batchQuery := q.Clone().PositionAtLeast(cursor).Limit(batchSize)
			events, err := es.Filter(ctx, batchQuery)
			if err != nil {
				select {
				case out <- StreamResult{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			for _, e := range events {
				select {
				case out <- StreamResult{Event: e}:
					cursor = e.Position()
				case <-ctx.Done():
					return
				}
			}
			if len(events) == 0 || uint64(len(events)) < batchSize {
				if !follow {
					return
				}
				es.waitForMore(ctx, q)
			}
		}
	}()
	return out
}

// waitForMore blocks until the notifier wakes us or a bounded poll
// interval elapses, whichever comes first -- the notifier is a latency
// optimization, never a correctness dependency.
func (es *Eventstore) waitForMore(ctx context.Context, q *SearchQueryBuilder) {
	const pollInterval = 2 * time.Second
	instanceID := ""
	if len(q.instanceIDs) == 1 {
		instanceID = q.instanceIDs[0]
	}
	if es.notifier != nil {
		es.notifier.Wait(ctx, instanceID, pollInterval)
		return
	}
	select {
	case <-time.After(pollInterval):
	case <-ctx.Done():
	}
}

// StreamResult is one element of a Stream() channel.
type StreamResult struct {
	Event Event
	Err   error
}

func (es *Eventstore) mapEvent(se *repository.Event) (Event, error) {
	base := &BaseEvent{
		Agg: &Aggregate{
			ID:            se.AggregateID,
			Type:          AggregateType(se.AggregateType),
			ResourceOwner: se.ResourceOwner,
			InstanceID:    se.InstanceID,
			Version:       Version(se.Version),
		},
		EventType:    EventType(se.Typ),
		Seq:          se.Sequence,
		Pos:          NewPositionFromRepo(repository.Position{Whole: se.PositionWhole, Frac: se.PositionFrac}),
		Created:      se.CreationDate,
		EditorUser:   se.EditorUser,
		EditorSvc:    se.EditorService,
		CommandIDVal: se.CommandID,
		raw:          json.RawMessage(se.Data),
	}

	mappers, ok := es.mappers[base.Agg.Type]
	if !ok {
		return base, nil
	}
	mapper, ok := mappers[base.EventType]
	if !ok {
		return base, nil
	}
	mapped, err := mapper(base)
	if err != nil {
		logging.WithFields(
			"aggregateType", base.Agg.Type,
			"eventType", base.EventType,
		).WithError(err).Warn("event mapper failed, falling back to generic event")
		return base, nil
	}
	return mapped, nil
}

func marshalPayload(payload any) (repository.Data, error) {
	if payload == nil {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("eventstore: marshal payload: %w", err)
	}
	return repository.Data(b), nil
}

func toUniqueOps(constraints []*UniqueConstraint) []repository.UniqueOp {
	if len(constraints) == 0 {
		return nil
	}
	ops := make([]repository.UniqueOp, len(constraints))
	for i, c := range constraints {
		ops[i] = repository.UniqueOp{
			Action:       int(c.Action),
			UniqueType:   c.UniqueType,
			UniqueField:  c.UniqueField,
			ErrorMessage: c.ErrorMessage,
		}
	}
	return ops
}

// NewPositionFromRepo converts the storage-layer Position into the
// decimal-backed eventstore.Position.
func NewPositionFromRepo(p repository.Position) Position {
	return NewPosition(time.Unix(0, p.Whole), p.Frac)
}
