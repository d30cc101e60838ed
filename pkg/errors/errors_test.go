package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCodeAndMatchesTemplate(t *testing.T) {
	clone := Clone(ErrCampaignTerminal, "campaign is finished")
	assert.Equal(t, "campaign is finished", clone.Message)
	assert.True(t, errors.Is(clone, ErrCampaignTerminal))
	assert.False(t, errors.Is(clone, ErrCampaignNameTaken))
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, IsNotFound(ErrNoMatchingStudents))
	assert.True(t, IsNotFound(ErrNoParentRecipients))
	assert.True(t, IsConflict(ErrCampaignNameTaken))
	assert.True(t, IsValidation(Invalid("name", "name is required")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestInvalidIsFieldScoped(t *testing.T) {
	err := Invalid("deadline", "deadline must be at least 7 days after scheduledDate")
	assert.Equal(t, "deadline", err.Field)
	assert.Equal(t, http.StatusBadRequest, err.Status)
}
