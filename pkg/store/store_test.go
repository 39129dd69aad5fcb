package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestResources(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "type", "name", "parent_id"}).
		AddRow(1, "map", "countries", nil).
		AddRow(2, "layer", "borders", 1)
	mock.ExpectQuery("SELECT id, type, name, parent_id").WillReturnRows(rows)

	records, err := s.Resources(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "countries", records[0].Name)
	assert.Nil(t, records[0].Parent)
	require.NotNil(t, records[1].Parent)
	assert.Equal(t, int64(1), *records[1].Parent)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrants(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"role", "type", "name"}).
		AddRow("editors", "layer", "borders").
		AddRow("public", "map", "countries")
	mock.ExpectQuery("FROM permissions p").WillReturnRows(rows)

	grants, err := s.Grants(context.Background())
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "editors", grants[0].Role)
	assert.Equal(t, "layer", grants[0].ResourceType)
	assert.Equal(t, "borders", grants[0].ResourceName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoles(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name"}).
		AddRow("editors").
		AddRow("public")
	mock.ExpectQuery("SELECT name FROM roles").WillReturnRows(rows)

	roles, err := s.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"editors", "public"}, roles)
}

func TestUsers(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, "bob"))
	mock.ExpectQuery("FROM user_groups").WillReturnRows(
		sqlmock.NewRows([]string{"user_id", "name"}).
			AddRow(1, "surveyors"))
	mock.ExpectQuery("FROM user_roles").WillReturnRows(
		sqlmock.NewRows([]string{"user_id", "name"}).
			AddRow(1, "editors").
			AddRow(2, "public"))

	users, err := s.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "alice", users[0].Name)
	assert.Equal(t, []string{"surveyors"}, users[0].Groups)
	assert.Equal(t, []string{"editors"}, users[0].Roles)

	assert.Equal(t, "bob", users[1].Name)
	assert.Empty(t, users[1].Groups)
	assert.Equal(t, []string{"public"}, users[1].Roles)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroups(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM groups").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "surveyors"))
	mock.ExpectQuery("FROM group_roles").WillReturnRows(
		sqlmock.NewRows([]string{"group_id", "name"}).
			AddRow(1, "editors"))

	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "surveyors", groups[0].Name)
	assert.Equal(t, []string{"editors"}, groups[0].Roles)
}

func TestResources_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, type, name, parent_id").WillReturnError(assert.AnError)

	_, err := s.Resources(context.Background())
	assert.Error(t, err)
}
