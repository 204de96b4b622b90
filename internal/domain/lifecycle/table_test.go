package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
	off    light = "off"
)

func lights() *Table[light] {
	return NewTable([]light{red, green, yellow, off}, map[light][]light{
		red:    {green, off},
		green:  {yellow},
		yellow: {red},
		off:    {},
	})
}

func TestTable_Queries(t *testing.T) {
	tbl := lights()

	assert.True(t, tbl.IsValid(red))
	assert.False(t, tbl.IsValid("blue"))
	assert.True(t, tbl.CanTransition(red, green))
	assert.False(t, tbl.CanTransition(green, red))
	assert.True(t, tbl.IsTerminal(off))
	assert.False(t, tbl.IsTerminal(red))
	assert.Equal(t, []light{red, green, yellow, off}, tbl.Statuses())
}

func TestTable_AllowedReturnsCopy(t *testing.T) {
	tbl := lights()
	allowed := tbl.Allowed(red)
	allowed[0] = off

	assert.Equal(t, []light{green, off}, tbl.Allowed(red))
}

func TestTable_CheckRejectsNoOpAndUnlisted(t *testing.T) {
	tbl := lights()

	require.NoError(t, tbl.Check(red, green))

	err := tbl.Check(red, red)
	require.True(t, domain.IsInvalidTransition(err))

	err = tbl.Check(off, red)
	require.True(t, domain.IsInvalidTransition(err))
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{}, de.Details["allowed_next_statuses"])
}

func TestNewTable_PanicsOnUnknownTarget(t *testing.T) {
	assert.Panics(t, func() {
		NewTable([]light{red}, map[light][]light{red: {green}})
	})
	assert.Panics(t, func() {
		NewTable([]light{red, green}, map[light][]light{red: {green}})
	})
}

func TestActor_Validate(t *testing.T) {
	assert.NoError(t, Actor{ID: "u-1", Role: RoleStaff}.Validate())
	assert.NoError(t, SystemActor("payment-service").Validate())
	assert.True(t, domain.IsValidation(Actor{ID: " ", Role: RoleStaff}.Validate()))
	assert.True(t, domain.IsValidation(Actor{ID: "u-1", Role: "janitor"}.Validate()))
}

func TestEntityType(t *testing.T) {
	et, err := ParseEntityType("booking")
	require.NoError(t, err)
	assert.Equal(t, EntityBooking, et)

	_, err = ParseEntityType("invoice")
	assert.True(t, domain.IsValidation(err))

	id := uuid.MustParse("7d1b1a2e-3c7f-4d8e-9a40-2f2f1c9b8e11")
	assert.Equal(t, "lifecycle:appointment:7d1b1a2e-3c7f-4d8e-9a40-2f2f1c9b8e11", LockKey(EntityAppointment, id))
}
