package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFightsByName(t *testing.T) {
	fights := []Fight{
		{ID: 1, Name: "Dimensius, the All-Devouring"},
		{ID: 2, Name: "Nexus-King Salhadaar"},
		{ID: 3, Name: "Dimensius, the All-Devouring"},
	}

	chosen, err := SelectFights(fights, "dimensius", nil)
	require.NoError(t, err)
	require.Len(t, chosen, 2)
	assert.Equal(t, 1, chosen[0].ID)
	assert.Equal(t, 3, chosen[1].ID)
}

func TestSelectFightsByIDs(t *testing.T) {
	fights := []Fight{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}

	chosen, err := SelectFights(fights, "", []int{3, 1})
	require.NoError(t, err)
	require.Len(t, chosen, 2)
	assert.Equal(t, 1, chosen[0].ID)
	assert.Equal(t, 3, chosen[1].ID)
}

func TestSelectFightsNoMatch(t *testing.T) {
	fights := []Fight{{ID: 1, Name: "Dimensius"}}

	_, err := SelectFights(fights, "salhadaar", nil)
	require.Error(t, err)
	var sel *FightSelectionError
	assert.ErrorAs(t, err, &sel)

	_, err = SelectFights(fights, "dimensius", []int{99})
	require.Error(t, err)
	assert.ErrorAs(t, err, &sel)
}

func TestSanitizeReportCode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"AbCd1234XyZ", "AbCd1234XyZ"},
		{"  AbCd1234XyZ  ", "AbCd1234XyZ"},
		{"https://www.warcraftlogs.com/reports/AbCd1234XyZ", "AbCd1234XyZ"},
		{"https://www.warcraftlogs.com/reports/AbCd1234XyZ?fight=last", "AbCd1234XyZ"},
		{"https://www.warcraftlogs.com/reports/AbCd1234XyZ/extra", "AbCd1234XyZ"},
	} {
		got, err := SanitizeReportCode(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSanitizeReportCodeEmpty(t *testing.T) {
	_, err := SanitizeReportCode("   ")
	assert.Error(t, err)
}
