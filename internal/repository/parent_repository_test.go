package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentRepositoryListLinks(t *testing.T) {
	db, mock, cleanup := newCampaignRepoMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "parent_user_id"}).
		AddRow("s-1", "p-1").
		AddRow("s-2", "p-1").
		AddRow("s-2", "p-2")
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_parents sp")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	links, err := repo.ListLinks(context.Background(), []string{"s-1", "s-2"})
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "p-2", links[2].ParentUserID)
}

func TestParentRepositoryListLinksIgnoresAccountState(t *testing.T) {
	db, mock, cleanup := newCampaignRepoMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	mock.ExpectQuery(`(?s)^SELECT sp\.student_id, sp\.parent_user_id\s+FROM student_parents sp\s+WHERE sp\.student_id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "parent_user_id"}).AddRow("s-1", "p-inactive"))

	links, err := repo.ListLinks(context.Background(), []string{"s-1"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "p-inactive", links[0].ParentUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
