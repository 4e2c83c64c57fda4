package imports

import (
	"time"

	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
)

type ImportStatus string

const (
	ImportStatusPending  ImportStatus = "PENDING"
	ImportStatusVerified ImportStatus = "VERIFIED"
)

// Import is one supplier shipment awaiting verification. The RMB to IDR
// exchange rate is fixed when the record is created; verification never
// reprices the items.
type Import struct {
	ID           int64        `json:"id"`
	DocNumber    string       `json:"doc_number"`
	SupplierName string       `json:"supplier_name"`
	ContainerNo  *string      `json:"container_no,omitempty"`
	WarehouseID  int64        `json:"warehouse_id"`
	ImportDate   time.Time    `json:"import_date"`
	ExchangeRate float64      `json:"exchange_rate"`
	Status       ImportStatus `json:"status"`
	TotalRMB     float64      `json:"total_rmb"`
	TotalIDR     float64      `json:"total_idr"`
	Notes        *string      `json:"notes,omitempty"`
	CreatedBy    int64        `json:"created_by"`
	VerifiedBy   *int64       `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time   `json:"verified_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Items        []ImportItem `json:"items,omitempty"`
}

// ImportItem is one line of a shipment. Identifying fields vary by product
// category; ProductID is set when verification materialises the product.
type ImportItem struct {
	ID          int64             `json:"id"`
	ImportID    int64             `json:"import_id"`
	Category    products.Category `json:"category"`
	Name        string            `json:"name"`
	MachineType *string           `json:"machine_type,omitempty"`
	Model       *string           `json:"model,omitempty"`
	SerialNo    *string           `json:"serial_number,omitempty"`
	UOM         *string           `json:"uom,omitempty"`
	PartNumber  *string           `json:"part_number,omitempty"`
	BatchNumber *string           `json:"batch_number,omitempty"`
	Quantity    float64           `json:"quantity"`
	UnitCostRMB float64           `json:"unit_cost_rmb"`
	UnitCostIDR float64           `json:"unit_cost_idr"`
	ProductID   *int64            `json:"product_id,omitempty"`
	LineOrder   int               `json:"line_order"`
}
