package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent_ParseData(t *testing.T) {
	type payload struct {
		HomeID int64  `json:"home_id"`
		Amount string `json:"amount"`
	}

	ce, err := NewCloudEvent("service-stay", "booking.confirmed", payload{HomeID: 7, Amount: "300"})
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "booking.confirmed", parsed.Type)

	var got payload
	require.NoError(t, parsed.ParseData(&got))
	assert.Equal(t, payload{HomeID: 7, Amount: "300"}, got)
}

func TestParseCloudEvent_RejectsMissingType(t *testing.T) {
	_, err := ParseCloudEvent([]byte(`{"specversion":"1.0","id":"x"}`))
	assert.Error(t, err)
}

func TestParseCloudEvent_RejectsGarbage(t *testing.T) {
	_, err := ParseCloudEvent([]byte(`not-json`))
	assert.Error(t, err)
}
