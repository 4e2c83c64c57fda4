package products

import "time"

// Category is the closed set of product shapes. Required identifying fields
// differ per category, so validation is exhaustive over this set.
type Category string

const (
	// CategorySerialized identifies machines tracked per serial number.
	CategorySerialized Category = "SERIALIZED"
	// CategoryNonSerialized identifies parts tracked per part number.
	CategoryNonSerialized Category = "NON_SERIALIZED"
	// CategoryBulk identifies bulk goods tracked per batch/lot.
	CategoryBulk Category = "BULK"
)

// Product represents a sellable/stockable item. Serialized products carry
// machine attributes; non-serialized and bulk products carry part or batch
// attributes plus a unit of measure.
type Product struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	MachineType *string   `json:"machine_type,omitempty"`
	Model       *string   `json:"model,omitempty"`
	SerialNo    *string   `json:"serial_number,omitempty"`
	UOM         *string   `json:"uom,omitempty"`
	PartNumber  *string   `json:"part_number,omitempty"`
	BatchNumber *string   `json:"batch_number,omitempty"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
