package projection

import (
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
	"github.com/authapp/zitadel/internal/repository/instance"
	"github.com/authapp/zitadel/internal/repository/policy"
)

// PolicyProjectionTable adapts the teacher's single-table execution
// projection shape (internal/repository/execution's SetEvent/
// RemovedEvent reducer pair) to the policy aggregate's two "set"
// events, folded into one row per (instance, resource_owner, id).
const (
	PolicyProjectionTable = "projections.policies"

	PolicyColumnID              = "id"
	PolicyColumnCreationDate    = "creation_date"
	PolicyColumnChangeDate      = "change_date"
	PolicyColumnResourceOwner   = "resource_owner"
	PolicyColumnInstanceID      = "instance_id"
	PolicyColumnSequence        = "sequence"
	PolicyColumnAllowUserPass   = "allow_username_password"
	PolicyColumnAllowExternal   = "allow_external_idp"
	PolicyColumnForceMFA        = "force_mfa"
	PolicyColumnPasswordMinLen  = "password_min_length"
	PolicyColumnPasswordUpper   = "password_require_upper"
	PolicyColumnPasswordDigit   = "password_require_digit"
)

type policyProjection struct{}

// NewPolicyProjection returns the policies read-model handler.
func NewPolicyProjection() handler.Handler { return &policyProjection{} }

func (*policyProjection) Name() string { return PolicyProjectionTable }

func (*policyProjection) Init() *handler.Check {
	return handler.NewTableCheck(
		handler.NewTable([]*handler.InitColumn{
			handler.NewColumn(PolicyColumnID, handler.ColumnTypeText),
			handler.NewColumn(PolicyColumnCreationDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(PolicyColumnChangeDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(PolicyColumnResourceOwner, handler.ColumnTypeText),
			handler.NewColumn(PolicyColumnInstanceID, handler.ColumnTypeText),
			handler.NewColumn(PolicyColumnSequence, handler.ColumnTypeInt64),
			handler.NewColumn(PolicyColumnAllowUserPass, handler.ColumnTypeBool, handler.Nullable()),
			handler.NewColumn(PolicyColumnAllowExternal, handler.ColumnTypeBool, handler.Nullable()),
			handler.NewColumn(PolicyColumnForceMFA, handler.ColumnTypeBool, handler.Nullable()),
			handler.NewColumn(PolicyColumnPasswordMinLen, handler.ColumnTypeInt64, handler.Nullable()),
			handler.NewColumn(PolicyColumnPasswordUpper, handler.ColumnTypeBool, handler.Nullable()),
			handler.NewColumn(PolicyColumnPasswordDigit, handler.ColumnTypeBool, handler.Nullable()),
		},
			handler.NewPrimaryKey(PolicyColumnInstanceID, PolicyColumnResourceOwner, PolicyColumnID),
		),
	)
}

func (p *policyProjection) Reducers() []handler.AggregateReducer {
	return []handler.AggregateReducer{
		{
			Aggregate: policy.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				policy.LoginSetType:    p.reduceLoginSet,
				policy.PasswordSetType: p.reducePasswordSet,
				policy.RemovedType:     p.reduceRemoved,
			},
		},
		{
			Aggregate: instance.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				instance.RemovedType: reduceInstanceRemovedHelper(PolicyColumnInstanceID),
			},
		},
	}
}

func (p *policyProjection) pk(event eventstore.Event) []handler.Column {
	return []handler.Column{
		handler.NewCol(PolicyColumnInstanceID, event.Aggregate().InstanceID),
		handler.NewCol(PolicyColumnResourceOwner, event.Aggregate().ResourceOwner),
		handler.NewCol(PolicyColumnID, event.Aggregate().ID),
	}
}

func (p *policyProjection) reduceLoginSet(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*policy.LoginSetEvent)
	if !ok {
		return nil, wrongEventType(policy.LoginSetType)
	}
	pk := p.pk(e)
	cols := append(pk,
		handler.NewCol(PolicyColumnCreationDate, handler.OnlySetValueOnInsert(PolicyProjectionTable, e.CreationDate())),
		handler.NewCol(PolicyColumnChangeDate, e.CreationDate()),
		handler.NewCol(PolicyColumnSequence, e.Sequence()),
		handler.NewCol(PolicyColumnAllowUserPass, e.AllowUsernamePassword),
		handler.NewCol(PolicyColumnAllowExternal, e.AllowExternalIDP),
		handler.NewCol(PolicyColumnForceMFA, e.ForceMFA),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *policyProjection) reducePasswordSet(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*policy.PasswordSetEvent)
	if !ok {
		return nil, wrongEventType(policy.PasswordSetType)
	}
	pk := p.pk(e)
	cols := append(pk,
		handler.NewCol(PolicyColumnCreationDate, handler.OnlySetValueOnInsert(PolicyProjectionTable, e.CreationDate())),
		handler.NewCol(PolicyColumnChangeDate, e.CreationDate()),
		handler.NewCol(PolicyColumnSequence, e.Sequence()),
		handler.NewCol(PolicyColumnPasswordMinLen, e.MinLength),
		handler.NewCol(PolicyColumnPasswordUpper, e.RequireUpper),
		handler.NewCol(PolicyColumnPasswordDigit, e.RequireDigit),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *policyProjection) reduceRemoved(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*policy.RemovedEvent)
	if !ok {
		return nil, wrongEventType(policy.RemovedType)
	}
	return handler.NewDeleteStatement(e, []handler.Condition{
		handler.NewCond(PolicyColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCond(PolicyColumnResourceOwner, e.Aggregate().ResourceOwner),
		handler.NewCond(PolicyColumnID, e.Aggregate().ID),
	}), nil
}
