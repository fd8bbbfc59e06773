package eventstore

// Aggregate identifies a logical entity by the triple spec.md §3 names:
// (instance_id, aggregate_type, aggregate_id). It carries no state of
// its own -- state is always derived by replaying the aggregate's
// events (see command.WriteModel).
type Aggregate struct {
	// ID is the aggregate_id.
	ID string
	// Type is the aggregate_type, e.g. "user", "org", "session".
	Type AggregateType
	// ResourceOwner is the owning org/tenant id within the instance.
	ResourceOwner string
	// InstanceID is the outermost tenant boundary.
	InstanceID string
	// Version is the schema version of this aggregate type
	// (aggregate_version in spec.md §3), bumped when the write-model's
	// shape changes in a way that is not just additive event fields.
	Version Version
}

// AggregateType is a dotted, stable aggregate name.
type AggregateType string

// Version is the aggregate's schema version, kept as a string (e.g.
// "v1", "v2") rather than an integer so it can be embedded directly in
// event payload struct tags without conversion, matching the teacher's
// Aggregate.Version field.
type Version string

// NewAggregate builds an Aggregate reference. ResourceOwner may be
// empty for aggregates that own themselves (e.g. "org", "instance");
// the event store falls back to the aggregate's own prior
// resource_owner in that case (see sql.Push).
func NewAggregate(instanceID string, typ AggregateType, id, resourceOwner string, version Version) *Aggregate {
	return &Aggregate{
		ID:            id,
		Type:          typ,
		ResourceOwner: resourceOwner,
		InstanceID:    instanceID,
		Version:       version,
	}
}
