package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCampaignRequestTracksPresence(t *testing.T) {
	var req UpdateCampaignRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Flu Shot","description":null,"targetGrades":["10","2"]}`), &req))

	assert.True(t, req.Name.Set)
	assert.Equal(t, "Flu Shot", req.Name.Value)
	assert.True(t, req.Description.Set)
	assert.True(t, req.Description.Null)
	assert.Equal(t, []string{"10", "2"}, req.TargetGrades.Value)
	assert.False(t, req.ScheduledDate.Set)
	assert.False(t, req.Deadline.Set)
	assert.False(t, req.Status.Set)
	assert.False(t, req.Empty())
}

func TestUpdateCampaignRequestEmpty(t *testing.T) {
	var req UpdateCampaignRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.True(t, req.Empty())
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var req UpdateCampaignRequest
	assert.Error(t, json.Unmarshal([]byte(`{"targetGrades":"10"}`), &req))
}

func TestOptionalMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
	}{A: Some("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":null}`, string(out))
}
