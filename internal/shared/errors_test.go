package shared

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkflowErrorMessage(t *testing.T) {
	err := ValidationFailed("quotation has invalid line items",
		InvalidItem{Index: 1, Field: "quantity", Reason: "must be positive"},
		InvalidItem{Index: 3, Field: "product_id", Reason: "is required"},
	)
	require.Contains(t, err.Error(), "ValidationFailed")
	require.Contains(t, err.Error(), "line 1: quantity must be positive")
	require.Contains(t, err.Error(), "line 3: product_id is required")
}

func TestIsKindUnwrapsWrappedErrors(t *testing.T) {
	inner := InvalidTransition("cannot approve from %s", "DRAFT")
	wrapped := fmt.Errorf("approve quotation: %w", inner)

	require.True(t, IsKind(wrapped, KindInvalidTransition))
	require.False(t, IsKind(wrapped, KindPermissionDenied))

	wf, ok := AsWorkflowError(wrapped)
	require.True(t, ok)
	require.Equal(t, KindInvalidTransition, wf.Kind)
}

func TestPermissionDenied(t *testing.T) {
	err := PermissionDenied(PermQuotationApprove)
	require.Equal(t, KindPermissionDenied, err.Kind)
	require.Contains(t, err.Message, PermQuotationApprove)
}

func TestDocRefIsStable(t *testing.T) {
	a := DocRef("quotations", 42)
	b := DocRef("quotations", 42)
	require.Equal(t, a, b)

	require.NotEqual(t, a, DocRef("quotations", 43))
	require.NotEqual(t, a, DocRef("imports", 42))
}

func TestPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 95)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 5, p.TotalPages)
	require.Equal(t, 0, p.Offset())

	p = NewPagination(3, 25, 95)
	require.Equal(t, 4, p.TotalPages)
	require.Equal(t, 50, p.Offset())
}
