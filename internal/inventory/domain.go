package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound movement from an external source.
	MovementTypeIn MovementType = "IN"
	// MovementTypeOut represents an outbound movement.
	MovementTypeOut MovementType = "OUT"
	// MovementTypeAdjust indicates manual adjustments.
	MovementTypeAdjust MovementType = "ADJUST"
)

// Movement is an append-only record of one inventory quantity change.
// A nil source warehouse means the goods entered from outside (supplier
// import); RefModule/RefID record provenance.
type Movement struct {
	ID             int64        `json:"id"`
	Code           string       `json:"code"`
	Type           MovementType `json:"type"`
	ProductID      int64        `json:"product_id"`
	Qty            float64      `json:"qty"`
	UnitCost       float64      `json:"unit_cost"`
	SrcWarehouseID *int64       `json:"src_warehouse_id,omitempty"`
	DstWarehouseID *int64       `json:"dst_warehouse_id,omitempty"`
	RefModule      string       `json:"ref_module"`
	RefID          string       `json:"ref_id"`
	Note           string       `json:"note,omitempty"`
	PostedAt       time.Time    `json:"posted_at"`
	CreatedBy      int64        `json:"created_by"`
}

// Balance summarises stock per warehouse and product.
type Balance struct {
	WarehouseID int64     `json:"warehouse_id"`
	ProductID   int64     `json:"product_id"`
	Qty         float64   `json:"qty"`
	AvgCost     float64   `json:"avg_cost"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	WarehouseID int64
	ProductID   int64
	RefModule   string
	RefID       string
	Limit       int
}

// ErrNegativeStock triggered when a movement would result in negative qty.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrBalanceNotFound indicates a missing balance row.
var ErrBalanceNotFound = errors.New("inventory: balance not found")
