package projection

import (
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/eventstore/handler"
	"github.com/authapp/zitadel/internal/repository/instance"
	"github.com/authapp/zitadel/internal/repository/org"
)

const (
	OrgProjectionTable = "projections.orgs"

	OrgColumnID            = "id"
	OrgColumnCreationDate  = "creation_date"
	OrgColumnChangeDate    = "change_date"
	OrgColumnSequence      = "sequence"
	OrgColumnState         = "state"
	OrgColumnResourceOwner = "resource_owner"
	OrgColumnInstanceID    = "instance_id"
	OrgColumnName          = "name"
	OrgColumnDomain        = "domain"
)

const (
	orgStateActive      = 1
	orgStateDeactivated = 2
)

type orgProjection struct{}

// NewOrgProjection returns the orgs read-model handler.
func NewOrgProjection() handler.Handler { return &orgProjection{} }

func (*orgProjection) Name() string { return OrgProjectionTable }

func (*orgProjection) Init() *handler.Check {
	return handler.NewTableCheck(
		handler.NewTable([]*handler.InitColumn{
			handler.NewColumn(OrgColumnID, handler.ColumnTypeText),
			handler.NewColumn(OrgColumnCreationDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(OrgColumnChangeDate, handler.ColumnTypeTimestamp),
			handler.NewColumn(OrgColumnSequence, handler.ColumnTypeInt64),
			handler.NewColumn(OrgColumnState, handler.ColumnTypeEnum),
			handler.NewColumn(OrgColumnResourceOwner, handler.ColumnTypeText),
			handler.NewColumn(OrgColumnInstanceID, handler.ColumnTypeText),
			handler.NewColumn(OrgColumnName, handler.ColumnTypeText),
			handler.NewColumn(OrgColumnDomain, handler.ColumnTypeText),
		},
			handler.NewPrimaryKey(OrgColumnInstanceID, OrgColumnID),
		),
	)
}

func (p *orgProjection) Reducers() []handler.AggregateReducer {
	return []handler.AggregateReducer{
		{
			Aggregate: org.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				org.AddedType:       p.reduceAdded,
				org.NameChangedType: p.reduceNameChanged,
				org.DomainSetType:   p.reduceDomainSet,
				org.DeactivatedType: p.reduceState(orgStateDeactivated),
				org.ReactivatedType: p.reduceState(orgStateActive),
			},
		},
		{
			Aggregate: instance.AggregateType,
			EventReducers: map[eventstore.EventType]handler.EventReducer{
				instance.RemovedType: reduceInstanceRemovedHelper(OrgColumnInstanceID),
			},
		},
	}
}

func (p *orgProjection) reduceAdded(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*org.AddedEvent)
	if !ok {
		return nil, wrongEventType(org.AddedType)
	}
	pk := []handler.Column{
		handler.NewCol(OrgColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCol(OrgColumnID, e.Aggregate().ID),
	}
	cols := append(pk,
		handler.NewCol(OrgColumnCreationDate, handler.OnlySetValueOnInsert(OrgProjectionTable, e.CreationDate())),
		handler.NewCol(OrgColumnChangeDate, e.CreationDate()),
		handler.NewCol(OrgColumnSequence, e.Sequence()),
		handler.NewCol(OrgColumnState, orgStateActive),
		handler.NewCol(OrgColumnResourceOwner, e.Aggregate().ResourceOwner),
		handler.NewCol(OrgColumnName, e.Name),
		handler.NewCol(OrgColumnDomain, e.Domain),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *orgProjection) reduceNameChanged(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*org.NameChangedEvent)
	if !ok {
		return nil, wrongEventType(org.NameChangedType)
	}
	pk := []handler.Column{
		handler.NewCol(OrgColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCol(OrgColumnID, e.Aggregate().ID),
	}
	cols := append(pk,
		handler.NewCol(OrgColumnChangeDate, e.CreationDate()),
		handler.NewCol(OrgColumnSequence, e.Sequence()),
		handler.NewCol(OrgColumnName, e.Name),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *orgProjection) reduceDomainSet(event eventstore.Event) (*handler.Statement, error) {
	e, ok := event.(*org.DomainSetEvent)
	if !ok {
		return nil, wrongEventType(org.DomainSetType)
	}
	pk := []handler.Column{
		handler.NewCol(OrgColumnInstanceID, e.Aggregate().InstanceID),
		handler.NewCol(OrgColumnID, e.Aggregate().ID),
	}
	cols := append(pk,
		handler.NewCol(OrgColumnChangeDate, e.CreationDate()),
		handler.NewCol(OrgColumnSequence, e.Sequence()),
		handler.NewCol(OrgColumnDomain, e.Domain),
	)
	return handler.NewUpsertStatement(e, pk, cols), nil
}

func (p *orgProjection) reduceState(state int) handler.EventReducer {
	return func(event eventstore.Event) (*handler.Statement, error) {
		pk := []handler.Column{
			handler.NewCol(OrgColumnInstanceID, event.Aggregate().InstanceID),
			handler.NewCol(OrgColumnID, event.Aggregate().ID),
		}
		cols := append(pk,
			handler.NewCol(OrgColumnChangeDate, event.CreationDate()),
			handler.NewCol(OrgColumnSequence, event.Sequence()),
			handler.NewCol(OrgColumnState, state),
		)
		return handler.NewUpsertStatement(event, pk, cols), nil
	}
}
