package wcl

import (
	"strings"
	"testing"

	"wcl_check/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0", ft(0))
	assert.Equal(t, "300000", ft(300000))
	assert.Equal(t, "3600000", ft(3600000))
	assert.Equal(t, "1234.5", ft(1234.5))
}

func TestEventFilterOf(t *testing.T) {
	assert.Equal(t, "", eventFilterOf(analysis.EventQuery{}))

	assert.Equal(
		t,
		`type = "damage"`,
		eventFilterOf(analysis.EventQuery{Filter: `type = "damage"`}),
	)

	assert.Equal(
		t,
		`ability.name = "Healthstone"`,
		eventFilterOf(analysis.EventQuery{AbilityName: "Healthstone"}),
	)

	assert.Equal(
		t,
		`type = "heal" and ability.name = "Healthstone"`,
		eventFilterOf(analysis.EventQuery{Filter: `type = "heal"`, AbilityName: "Healthstone"}),
	)
}

func TestEventsTemplateRendering(t *testing.T) {
	var sb strings.Builder
	err := tmplEvents.Execute(&sb, struct {
		Code      string
		Start     string
		End       string
		DataType  string
		Limit     int
		AbilityID int
		Filter    string
	}{
		Code:      "AbCd1234",
		Start:     "0",
		End:       "300000",
		DataType:  "DamageTaken",
		Limit:     10000,
		AbilityID: 1224737,
		Filter:    `target.name = "Artoshion"`,
	})
	require.NoError(t, err)

	query := sb.String()
	assert.Contains(t, query, `report(code: "AbCd1234")`)
	assert.Contains(t, query, "startTime: 0")
	assert.Contains(t, query, "endTime: 300000")
	assert.Contains(t, query, "dataType: DamageTaken")
	assert.Contains(t, query, "limit: 10000")
	assert.Contains(t, query, "abilityID: 1224737")
	assert.Contains(t, query, "filterExpression:")
	assert.Contains(t, query, "nextPageTimestamp")
}

func TestEventsTemplateOmitsEmptyArguments(t *testing.T) {
	var sb strings.Builder
	err := tmplEvents.Execute(&sb, struct {
		Code      string
		Start     string
		End       string
		DataType  string
		Limit     int
		AbilityID int
		Filter    string
	}{
		Code:     "AbCd1234",
		Start:    "0",
		End:      "300000",
		DataType: "Deaths",
		Limit:    10000,
	})
	require.NoError(t, err)

	query := sb.String()
	assert.NotContains(t, query, "abilityID")
	assert.NotContains(t, query, "filterExpression")
}

func TestTableTemplateRendering(t *testing.T) {
	var sb strings.Builder
	err := tmplTable.Execute(&sb, struct {
		Code     string
		Start    string
		End      string
		DataType string
		Filter   string
	}{
		Code:     "AbCd1234",
		Start:    "1000",
		End:      "2000",
		DataType: "DamageDone",
		Filter:   `encounterPhase = 3`,
	})
	require.NoError(t, err)

	query := sb.String()
	assert.Contains(t, query, "table(")
	assert.Contains(t, query, "dataType: DamageDone")
	assert.Contains(t, query, "encounterPhase = 3")
}

func TestGraphQLErrorsOf(t *testing.T) {
	assert.NoError(t, graphQLErrorsOf("events", nil))

	err := graphQLErrorsOf("events", []graphQLError{
		{Message: "report not found"},
		{Message: "rate limited"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events: report not found; rate limited")
}
