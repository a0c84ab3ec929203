package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferRolesTrustedGroups(t *testing.T) {
	roles, specs := InferRoles(testRoster())

	assert.Equal(t, RoleTank, roles["Akame"])
	assert.Equal(t, RoleHealer, roles["Bela"])
	assert.Equal(t, RoleMelee, roles["Cree"])
	assert.Equal(t, RoleRanged, roles["Dara"])
	assert.Equal(t, "Arcane", specs["Dara"])
}

func TestInferRolesClassDefault(t *testing.T) {
	roles, _ := InferRoles(&PlayerDetails{
		DPS: []PlayerDetailEntry{rosterEntry("Ezra", "Mage", "Chronomancy")},
	})

	// Unknown spec falls through to the per-class default.
	assert.Equal(t, RoleRanged, roles["Ezra"])
}

func TestInferRolesUnknownClass(t *testing.T) {
	roles, _ := InferRoles(&PlayerDetails{
		DPS: []PlayerDetailEntry{rosterEntry("Fenn", "Tinker", "Gadgets")},
	})

	assert.Equal(t, RoleUnknown, roles["Fenn"])
}

func TestInferRolesSpecFromIcon(t *testing.T) {
	entry := PlayerDetailEntry{Name: "Gale", Type: "Druid", Icon: "Druid-Feral_Combat"}
	roles, specs := InferRoles(&PlayerDetails{DPS: []PlayerDetailEntry{entry}})

	assert.Equal(t, "Feral Combat", specs["Gale"])
	assert.Equal(t, RoleMelee, roles["Gale"])
}

func TestRolePriorityOrdering(t *testing.T) {
	require.Less(t, rolePriority(RoleTank), rolePriority(RoleHealer))
	require.Less(t, rolePriority(RoleHealer), rolePriority(RoleMelee))
	require.Less(t, rolePriority(RoleMelee), rolePriority(RoleRanged))
	require.Less(t, rolePriority(RoleRanged), rolePriority(RoleUnknown))

	// Unrecognized values sort with Unknown.
	assert.Equal(t, rolePriority(RoleUnknown), rolePriority(Role("Bard")))
}

func TestPlayersFromDetails(t *testing.T) {
	players := playersFromDetails(testRoster())
	assert.Equal(t, []string{"Akame", "Bela", "Cree", "Dara"}, players)
}
