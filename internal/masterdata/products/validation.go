package products

import (
	"errors"
	"fmt"
	"strings"
)

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// Validate checks the category-specific required fields.
func Validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	switch p.Category {
	case CategorySerialized:
		if !hasValue(p.SerialNo) {
			return errors.New("serialized product requires a serial number")
		}
	case CategoryNonSerialized, CategoryBulk:
		if !hasValue(p.PartNumber) && !hasValue(p.BatchNumber) {
			return fmt.Errorf("%s product requires a part number or batch number", strings.ToLower(string(p.Category)))
		}
	default:
		return fmt.Errorf("unknown product category %q", p.Category)
	}
	return nil
}
