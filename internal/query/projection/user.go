package projection

import (
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
	"github.com/authapp/zitadel/internal/repository/instance"
	"github.com/authapp/zitadel/internal/repository/user"
)

const (
	UserProjectionTable = "projections.users"

	UserColumnID            = "id"
	UserColumnCreationDate  = "creation_date"
	UserColumnChangeDate    = "change_date"
	UserColumnSequence      = "sequence"
	UserColumnState         = "state"
	UserColumnResourceOwner = "resource_owner"
	UserColumnInstanceID    = "instance_id"
	UserColumnUserName      = "user_name"
	UserColumnEmail         = "email"
)

// userState mirrors command.userState on the read side; kept as plain
// ints rather than re-exporting the command package's unexported enum.
const (
	userStateActive      = 1
	userStateDeactivated = 2
	userStateRemoved     = 3
)

type userProjection struct{}

// NewUserProjection returns the users read-model handler, registered
// with a handler.Manager at process startup.
func NewUserProjection() handler.Handler { return &userProjection{} }

func (*userProjection) Name() string { return UserProjectionTable }

func (*userProjection) Init() *handler.Check {
	return handler.NewTableCheck(
		handler.NewTable([]*handler.InitColumn{
			handler.NewColumn(UserColumnID, handler.ColumnTypeText),
			handler.NewColumn(UserColumnCreationDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(UserColumnChangeDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(UserColumnSequence, handler.ColumnTypeInt64),
			handler.NewColumn(UserColumnState, handler.ColumnTypeEnum),
			handler.NewColumn(UserColumnResourceOwner, handler.ColumnTypeText),
			handler.NewColumn(UserColumnInstanceID, handler.ColumnTypeText),
			handler.NewColumn(UserColumnUserName, handler.ColumnTypeText),
			handler.NewColumn(UserColumnEmail, handler.ColumnTypeText),
		},
			handler.NewPrimaryKey(UserColumnInstanceID, UserColumnID),
		),
	)
}

func (p *userProjection) Reducers() []handler.AggregateReducer {
	return []handler.AggregateReducer{
		{
			Aggregate: user.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				user.HumanAddedType:   p.reduceHumanAdded,
				user.EmailChangedType: p.reduceEmailChanged,
				user.DeactivatedType:  p.reduceState(userStateDeactivated),
				user.ReactivatedType:  p.reduceState(userStateActive),
				user.RemovedType:      p.reduceRemoved,
			},
		},
		{
			Aggregate: instance.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				instance.RemovedType: reduceInstanceRemovedHelper(UserColumnInstanceID),
			},
		},
	}
}

func (p *userProjection) reduceHumanAdded(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*user.HumanAddedEvent)
	if !ok {
		return nil, wrongEventType(user.HumanAddedType)
	}
	pk := []handler.Column{
		handler.NewCol(UserColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCol(UserColumnID, e.Aggregate().ID),
	}
	cols := append(pk,
		handler.NewCol(UserColumnCreationDate, handler.OnlySetValueOnInsert(UserProjectionTable, e.CreationDate())),
		handler.NewCol(UserColumnChangeDate, e.CreationDate()),
		handler.NewCol(UserColumnSequence, e.Sequence()),
		handler.NewCol(UserColumnState, userStateActive),
		handler.NewCol(UserColumnResourceOwner, e.Aggregate().ResourceOwner),
		handler.NewCol(UserColumnUserName, e.UserName),
		handler.NewCol(UserColumnEmail, e.Email),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *userProjection) reduceEmailChanged(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*user.EmailChangedEvent)
	if !ok {
		return nil, wrongEventType(user.EmailChangedType)
	}
	pk := []handler.Column{
		handler.NewCol(UserColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCol(UserColumnID, e.Aggregate().ID),
	}
	cols := append(pk,
		handler.NewCol(UserColumnChangeDate, e.CreationDate()),
		handler.NewCol(UserColumnSequence, e.Sequence()),
		handler.NewCol(UserColumnEmail, e.Email),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *userProjection) reduceState(state int) handler.EventReducer {
	return func(event eventstore.Event) (*handler.Statement, error) {
		pk := []handler.Column{
			handler.NewCol(UserColumnInstanceID, event.Aggregate().InstanceID),
			handler.NewCol(UserColumnID, event.Aggregate().ID),
		}
		cols := append(pk,
			handler.NewCol(UserColumnChangeDate, event.CreationDate()),
			handler.NewCol(UserColumnSequence, event.Sequence()),
			handler.NewCol(UserColumnState, state),
		)
		return handler.NewUpsertStatement(event, pk, cols), nil
	}
}

func (p *userProjection) reduceRemoved(event eventstore.Event) (*handler.Statement, error) {
	return handler.NewDeleteStatement(event, []handler.Condition{
		handler.NewCond(UserColumnInstanceID, event.Aggregate().InstanceID),
		handler.NewCond(UserColumnID, event.Aggregate().ID),
	}), nil
}
