package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorCan(t *testing.T) {
	actor := NewActor(1, false, []string{"sales.quotation.view", " Sales.Quotation.Edit "})

	require.True(t, actor.Can("sales.quotation.view"))
	require.True(t, actor.Can("sales.quotation.edit"), "permission names are case and space insensitive")
	require.True(t, actor.Can("SALES.QUOTATION.VIEW"))
	require.False(t, actor.Can("sales.quotation.approve"))
	require.False(t, actor.Can(""))
}

func TestAdminBypassesChecks(t *testing.T) {
	admin := NewActor(1, true, nil)
	require.True(t, admin.Can("anything.at.all"))
	require.True(t, admin.CanAny())
}

func TestCanAny(t *testing.T) {
	actor := NewActor(1, false, []string{"imports.view"})
	require.True(t, actor.CanAny("imports.verify", "imports.view"))
	require.False(t, actor.CanAny("imports.verify", "imports.delete"))
	require.False(t, actor.CanAny())
}
