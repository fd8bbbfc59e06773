package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

// EventType is a dotted, stable, append-only event name such as
// "user.human.added" (spec.md §6 "Event type naming").
type EventType string

// Event is the immutable fact spec.md §3 defines. Every concrete event
// (internal/repository/user.HumanAddedEvent, .../session.AddedEvent, ...)
// embeds BaseEvent and implements Payload()/UniqueConstraints().
type Event interface {
	// Aggregate identifies which aggregate this event belongs to.
	Aggregate() *Aggregate
	// Sequence is the 1-based, gapless, per-aggregate ordinal.
	Sequence() uint64
	// Position is the global ordering key.
	Position() Position
	// CreationDate is created_at.
	CreationDate() time.Time
	// Type is the dotted event_type.
	Type() EventType
	// Creator is editor_user.
	Creator() string
	// EditorService is editor_service.
	EditorService() string
	// Payload returns the struct to be JSON-marshaled as event_data on
	// push, or the already-decoded struct after Filter/Stream.
	Payload() any
	// Unmarshal decodes the stored payload into ptr. Implementations
	// must tolerate unknown fields (spec.md §9 "decode defensively").
	Unmarshal(ptr any) error
	// UniqueConstraints returns the unique-constraint operations this
	// event's command wants applied atomically with the append.
	UniqueConstraints() []*UniqueConstraint
}

// BaseEvent is embedded by every concrete event type, the same pattern
// the teacher uses in internal/repository/idpintent/intent.go
// (`eventstore.BaseEvent` tagged `json:"-"`). It carries every field an
// event needs other than its own payload.
type BaseEvent struct {
	Agg *Aggregate `json:"-"`

	EventType EventType `json:"-"`
	Seq       uint64    `json:"-"`
	Pos       Position  `json:"-"`
	Created   time.Time `json:"-"`

	EditorUser    string `json:"-"`
	EditorSvc     string `json:"-"`
	CommandIDVal  string `json:"-"`

	// raw holds the originally-stored payload bytes so Unmarshal can
	// decode into caller-supplied types after Filter/Stream, mirroring
	// BaseEventFromRepo + event.Unmarshal in the teacher.
	raw json.RawMessage `json:"-"`
}

func (b *BaseEvent) Aggregate() *Aggregate     { return b.Agg }
func (b *BaseEvent) Sequence() uint64          { return b.Seq }
func (b *BaseEvent) Position() Position        { return b.Pos }
func (b *BaseEvent) CreationDate() time.Time   { return b.Created }
func (b *BaseEvent) Type() EventType           { return b.EventType }
func (b *BaseEvent) Creator() string           { return b.EditorUser }
func (b *BaseEvent) EditorService() string     { return b.EditorSvc }
func (b *BaseEvent) CommandID() string         { return b.CommandIDVal }

// Unmarshal decodes the raw stored payload into ptr. Concrete event
// types generally don't need to call this themselves -- EventMapper
// functions (e.g. user.HumanAddedEventMapper) do -- but it's exposed because
// the teacher calls event.Unmarshal(e) directly inside mapper funcs.
func (b *BaseEvent) Unmarshal(ptr any) error {
	if len(b.raw) == 0 {
		return nil
	}
	return json.Unmarshal(b.raw, ptr)
}

// ctxEditorKey / ctxCommandIDKey let NewBaseEventForPush read the
// authenticated editor and the command's correlation id out of ctx
// without every command handler having to pass them explicitly,
// mirroring authz.GetInstance(ctx) used throughout the teacher.
type ctxKey int

const (
	ctxEditorUserKey ctxKey = iota
	ctxEditorServiceKey
	ctxCommandIDKey
)

// WithEditor attaches the authenticated editor (user id and/or service
// name) to ctx for the duration of a command.
func WithEditor(ctx context.Context, userID, service string) context.Context {
	ctx = context.WithValue(ctx, ctxEditorUserKey, userID)
	return context.WithValue(ctx, ctxEditorServiceKey, service)
}

// WithCommandID attaches the command_id that groups every event a
// single command produces (spec.md §3).
func WithCommandID(ctx context.Context, commandID string) context.Context {
	return context.WithValue(ctx, ctxCommandIDKey, commandID)
}

func editorUserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxEditorUserKey).(string)
	return v
}

func editorServiceFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxEditorServiceKey).(string)
	return v
}

func commandIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxCommandIDKey).(string)
	return v
}

// NewBaseEventForPush constructs the BaseEvent portion of a not-yet-
// appended event. Sequence and Position are left zero; the event
// store assigns them on push (spec.md §4.1 steps 2-3), the same
// division of labor as the teacher's NewBaseEventForPush.
func NewBaseEventForPush(ctx context.Context, aggregate *Aggregate, typ EventType) *BaseEvent {
	return &BaseEvent{
		Agg:          aggregate,
		EventType:    typ,
		EditorUser:   editorUserFromContext(ctx),
		EditorSvc:    editorServiceFromContext(ctx),
		CommandIDVal: commandIDFromContext(ctx),
	}
}

// BaseEventFromRepo reconstructs the BaseEvent portion of an event read
// back from storage, the mirror image of NewBaseEventForPush. Concrete
// EventMapper functions call this then event.Unmarshal(e) to fill in
// their own payload fields, exactly as idpintent.StartedEventMapper
// does in the teacher.
func BaseEventFromRepo(e Event) *BaseEvent {
	return &BaseEvent{
		Agg:        e.Aggregate(),
		EventType:  e.Type(),
		Seq:        e.Sequence(),
		Pos:        e.Position(),
		Created:    e.CreationDate(),
		EditorUser: e.Creator(),
		EditorSvc:  e.EditorService(),
		raw:        rawPayload(e),
	}
}

// rawPayload extracts the raw JSON the repository layer stored for e,
// if e exposes it through a RawPayload method. No event type in this
// module has one (the *BaseEvent mapEvent hands to mappers does not), so
// BaseEventFromRepo leaves raw empty; mappers decode the payload by
// calling Unmarshal on the event they were handed instead.
func rawPayload(e Event) json.RawMessage {
	type rawHolder interface{ RawPayload() json.RawMessage }
	if rh, ok := e.(rawHolder); ok {
		return rh.RawPayload()
	}
	return nil
}
