package eventstore

// Command is a not-yet-appended event. The Command Engine builds a
// slice of these per spec.md §4.3 step 3 and hands them to
// EventStore.Push; a concrete event type satisfies this interface by
// embedding *BaseEvent and implementing Payload/UniqueConstraints,
// exactly like the teacher's idpintent events do.
type Command interface {
	Aggregate() *Aggregate
	Type() EventType
	Creator() string
	EditorService() string
	Payload() any
	UniqueConstraints() []*UniqueConstraint
}

// SequencedCommand is a Command submitted with the write-model sequence
// the caller believes its aggregate is at (expected_sequence in
// spec.md §4.1 step 2). Push compares this, per aggregate, against the
// max sequence it finds under the per-aggregate lock and fails the
// whole batch with ConcurrencyConflict on a mismatch. All commands for
// the same aggregate within one Push share the same expectation --
// only the first command for a given aggregate id needs one.
type SequencedCommand struct {
	Command
	ExpectedSequence uint64
	HasExpectation   bool
}

// NewSequencedCommand pairs cmd with an expected_sequence.
func NewSequencedCommand(cmd Command, expectedSequence uint64) *SequencedCommand {
	return &SequencedCommand{Command: cmd, ExpectedSequence: expectedSequence, HasExpectation: true}
}

// NoSequenceCheck wraps cmd without an optimistic-concurrency
// expectation, for aggregates whose command does not need to observe a
// specific prior sequence (rare; most write-model commands should
// supply one).
func NoSequenceCheck(cmd Command) *SequencedCommand {
	return &SequencedCommand{Command: cmd}
}
