package query

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel/internal/zerrors"
)

func TestOrgByID_ScopesToInstance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "creation_date", "change_date", "resource_owner", "state", "sequence", "name", "domain"}).
		AddRow("org1", now, now, "org1", int64(OrgStateActive), int64(3), "Acme", "acme.test")
	mock.ExpectQuery("SELECT (.+) FROM projections.orgs").
		WithArgs("org1", "inst1").
		WillReturnRows(rows)

	q := NewQueries(db, nil, nil, nil)
	org, err := q.OrgByID(context.Background(), "inst1", "org1")
	require.NoError(t, err)
	require.Equal(t, "Acme", org.Name)
	require.Equal(t, "acme.test", org.Domain)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgByID_NotFoundMapsToDomainError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM projections.orgs").
		WithArgs("org1", "inst1").
		WillReturnError(sql.ErrNoRows)

	q := NewQueries(db, nil, nil, nil)
	_, err = q.OrgByID(context.Background(), "inst1", "org1")
	require.Error(t, err)
	require.True(t, zerrors.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchOrgs_FiltersByInstanceAndTextQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "creation_date", "change_date", "resource_owner", "state", "sequence", "name", "domain", "count"}).
		AddRow("org1", now, now, "org1", int64(OrgStateActive), int64(1), "Acme", "acme.test", int64(1))
	mock.ExpectQuery("SELECT (.+) FROM projections.orgs").
		WithArgs("acme", "inst1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs().
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(5)))

	nameQuery, err := NewOrgNameSearchQuery(TextEquals, "acme")
	require.NoError(t, err)

	q := NewQueries(db, nil, nil, nil)
	orgs, err := q.SearchOrgs(context.Background(), "inst1", &OrgSearchQueries{Queries: []SearchQuery{nameQuery}})
	require.NoError(t, err)
	require.Len(t, orgs.Orgs, 1)
	require.EqualValues(t, 5, orgs.LatestSequence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgByID_ReadsThroughCacheOnHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cache := newFakeCache()
	cached := &Org{ID: "org1", Name: "Acme"}
	require.NoError(t, cache.Set(context.Background(), "org:inst1:org1", cached, 0))

	q := NewQueries(db, nil, nil, cache)
	org, err := q.OrgByID(context.Background(), "inst1", "org1")
	require.NoError(t, err)
	require.Equal(t, "Acme", org.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
