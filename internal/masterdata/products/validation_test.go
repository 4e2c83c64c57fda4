package products

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestValidateSerialized(t *testing.T) {
	p := Product{Name: "Excavator XE215C", Category: CategorySerialized, SerialNo: str("XE215C-2026-0042")}
	require.NoError(t, Validate(p))

	p.SerialNo = nil
	require.Error(t, Validate(p))

	p.SerialNo = str("   ")
	require.Error(t, Validate(p))
}

func TestValidateNonSerialized(t *testing.T) {
	p := Product{Name: "Hydraulic pump", Category: CategoryNonSerialized, PartNumber: str("HP-2214")}
	require.NoError(t, Validate(p))

	p.PartNumber = nil
	require.Error(t, Validate(p))

	p.BatchNumber = str("B-118")
	require.NoError(t, Validate(p), "a batch number satisfies the identity requirement too")
}

func TestValidateBulk(t *testing.T) {
	p := Product{Name: "Hydraulic oil 46", Category: CategoryBulk, BatchNumber: str("B-2026-118")}
	require.NoError(t, Validate(p))
}

func TestValidateRejectsUnknownCategoryAndEmptyName(t *testing.T) {
	require.Error(t, Validate(Product{Name: "", Category: CategoryBulk, BatchNumber: str("B-1")}))
	require.Error(t, Validate(Product{Name: "Thing", Category: "MYSTERY"}))
}
