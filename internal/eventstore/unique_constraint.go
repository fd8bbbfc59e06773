package eventstore

// UniqueConstraintAction selects what a UniqueConstraint does when it
// is appended together with its owning event, per spec.md §4.2.
type UniqueConstraintAction int

const (
	// UniqueConstraintAdd reserves (instance_id, unique_type,
	// unique_field). A primary-key collision fails the whole push
	// with UniqueConstraintViolation.
	UniqueConstraintAdd UniqueConstraintAction = iota
	// UniqueConstraintRemove releases a previously reserved tuple.
	// Removing one that does not exist is a no-op (spec.md §4.2
	// idempotence rule).
	UniqueConstraintRemove
	// UniqueConstraintInstanceRemove releases every constraint owned
	// by an instance, used when an instance aggregate is torn down.
	UniqueConstraintInstanceRemove
)

// UniqueConstraint is the cross-aggregate "at most one owner of key K"
// enforcement unit from spec.md §3/§4.2. It is never appended on its
// own -- it always rides along with the event batch that requires it
// (e.g. changing a username emits a Remove for the old value and an
// Add for the new one in the same push).
type UniqueConstraint struct {
	UniqueType   string
	UniqueField  string
	Action       UniqueConstraintAction
	ErrorMessage string
}

// NewAddUniqueConstraint reserves uniqueType/uniqueField, failing the
// push with errorMessage if already held.
func NewAddUniqueConstraint(uniqueType, uniqueField, errorMessage string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:   uniqueType,
		UniqueField:  uniqueField,
		Action:       UniqueConstraintAdd,
		ErrorMessage: errorMessage,
	}
}

// NewRemoveUniqueConstraint releases uniqueType/uniqueField.
func NewRemoveUniqueConstraint(uniqueType, uniqueField string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:  uniqueType,
		UniqueField: uniqueField,
		Action:      UniqueConstraintRemove,
	}
}

// NewRemoveInstanceUniqueConstraints releases every constraint an
// instance holds.
func NewRemoveInstanceUniqueConstraints() *UniqueConstraint {
	return &UniqueConstraint{Action: UniqueConstraintInstanceRemove}
}
