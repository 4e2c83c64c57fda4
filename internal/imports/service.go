package imports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitra-erp/mitra-erp/internal/inventory"
	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

const (
	approvalModule = "imports"
	auditEntity    = "import"
)

// ApprovalRecorder persists lifecycle history.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditRecorder writes audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ViewCache invalidates cached read models.
type ViewCache interface {
	Invalidate(ctx context.Context, entity string, id int64) error
}

// Service drives the import verification workflow. Verification is the
// single step that materialises products and inbound stock movements, and it
// happens exactly once per shipment.
type Service struct {
	repo      Repository
	approvals ApprovalRecorder
	audit     AuditRecorder
	cache     ViewCache
	logger    *slog.Logger
}

func NewService(repo Repository, approvals ApprovalRecorder, audit AuditRecorder, cache ViewCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, approvals: approvals, audit: audit, cache: cache, logger: logger}
}

// CreateInput is a new shipment awaiting verification.
type CreateInput struct {
	SupplierName string
	ContainerNo  *string
	WarehouseID  int64
	ImportDate   time.Time
	ExchangeRate float64
	Notes        *string
	Items        []ItemInput
}

// ItemInput is one shipment line. ProductID optionally references a product
// already in the catalogue; verification then reuses it instead of
// materialising a new record.
type ItemInput struct {
	Category    products.Category
	ProductID   *int64
	Name        string
	MachineType *string
	Model       *string
	SerialNo    *string
	UOM         *string
	PartNumber  *string
	BatchNumber *string
	Quantity    float64
	UnitCostRMB float64
}

func (s *Service) Get(ctx context.Context, actor rbac.Actor, id int64) (*Import, error) {
	if !actor.Can(shared.PermImportView) {
		return nil, shared.PermissionDenied(shared.PermImportView)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, actor rbac.Actor, filter ListFilter) ([]Import, int, error) {
	if !actor.Can(shared.PermImportView) {
		return nil, 0, shared.PermissionDenied(shared.PermImportView)
	}
	return s.repo.List(ctx, filter)
}

// Create stores a pending import. Item costs in IDR are derived here with
// the supplied exchange rate and never recomputed afterwards.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, input CreateInput) (*Import, error) {
	if !actor.Can(shared.PermImportCreate) {
		return nil, shared.PermissionDenied(shared.PermImportCreate)
	}
	var items []shared.InvalidItem
	if strings.TrimSpace(input.SupplierName) == "" {
		items = append(items, shared.InvalidItem{Field: "supplier_name", Reason: "is required"})
	}
	if input.WarehouseID == 0 {
		items = append(items, shared.InvalidItem{Field: "warehouse_id", Reason: "is required"})
	}
	if input.ExchangeRate <= 0 {
		items = append(items, shared.InvalidItem{Field: "exchange_rate", Reason: "must be positive"})
	}
	for i, it := range input.Items {
		if it.Quantity <= 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "quantity", Reason: "must be positive"})
		}
		if it.UnitCostRMB < 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "unit_cost_rmb", Reason: "must not be negative"})
		}
		if it.ProductID != nil && *it.ProductID <= 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "product_id", Reason: "must be a valid product reference"})
		}
	}
	if len(items) > 0 {
		return nil, shared.ValidationFailed("import has invalid fields", items...)
	}

	imp := &Import{
		SupplierName: input.SupplierName,
		ContainerNo:  input.ContainerNo,
		WarehouseID:  input.WarehouseID,
		ImportDate:   input.ImportDate,
		ExchangeRate: input.ExchangeRate,
		Status:       ImportStatusPending,
		Notes:        input.Notes,
		CreatedBy:    actor.ID,
	}
	if imp.ImportDate.IsZero() {
		imp.ImportDate = time.Now()
	}
	for _, it := range input.Items {
		costIDR := it.UnitCostRMB * input.ExchangeRate
		imp.TotalRMB += it.Quantity * it.UnitCostRMB
		imp.TotalIDR += it.Quantity * costIDR
		imp.Items = append(imp.Items, ImportItem{
			Category:    it.Category,
			ProductID:   it.ProductID,
			Name:        it.Name,
			MachineType: it.MachineType,
			Model:       it.Model,
			SerialNo:    it.SerialNo,
			UOM:         it.UOM,
			PartNumber:  it.PartNumber,
			BatchNumber: it.BatchNumber,
			Quantity:    it.Quantity,
			UnitCostRMB: it.UnitCostRMB,
			UnitCostIDR: costIDR,
		})
	}

	id, err := s.repo.Create(ctx, imp)
	if err != nil {
		return nil, fmt.Errorf("create import: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "import.created", id, map[string]any{"doc_number": imp.DocNumber})
	return s.repo.Get(ctx, id)
}

// Verify materialises one product per item (or reuses the referenced one),
// posts the matching inbound stock movements and flips the import to
// verified, all in a single transaction.
// Validation runs over every item first so the caller sees the complete list
// of problems in one round trip.
func (s *Service) Verify(ctx context.Context, actor rbac.Actor, id int64) (*Import, error) {
	if !actor.Can(shared.PermImportVerify) {
		return nil, shared.PermissionDenied(shared.PermImportVerify)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		imp, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if imp.Status != ImportStatusPending {
			return shared.InvalidTransition("import %s is already %s", imp.DocNumber, imp.Status)
		}
		if len(imp.Items) == 0 {
			return shared.ValidationFailed("import has no items",
				shared.InvalidItem{Field: "items", Reason: "at least one item is required"})
		}
		if invalid := validateItems(imp.Items); len(invalid) > 0 {
			return shared.ValidationFailed("import items failed verification", invalid...)
		}

		now := time.Now()
		for _, item := range imp.Items {
			var productID int64
			if item.ProductID != nil {
				// The line references an existing catalogue product; reuse it
				// instead of materialising a duplicate.
				exists, err := tx.ProductExists(ctx, *item.ProductID)
				if err != nil {
					return err
				}
				if !exists {
					return &shared.WorkflowError{
						Kind:    shared.KindDependencyUnavailable,
						Message: "referenced product is unavailable",
						InvalidItems: []shared.InvalidItem{{
							Index:  item.LineOrder,
							Field:  "product_id",
							Reason: fmt.Sprintf("product %d no longer exists", *item.ProductID),
						}},
					}
				}
				productID = *item.ProductID
			} else {
				code, err := tx.NextNumber(ctx, "PRD", now)
				if err != nil {
					return err
				}
				productID, err = tx.CreateProduct(ctx, products.Product{
					Code:        code,
					Name:        item.Name,
					Category:    item.Category,
					MachineType: item.MachineType,
					Model:       item.Model,
					SerialNo:    item.SerialNo,
					UOM:         item.UOM,
					PartNumber:  item.PartNumber,
					BatchNumber: item.BatchNumber,
					Cost:        item.UnitCostIDR,
				})
				if err != nil {
					return fmt.Errorf("materialise product for item %d: %w", item.LineOrder, err)
				}
				if err := tx.SetItemProduct(ctx, item.ID, productID); err != nil {
					return err
				}
			}
			_, _, err = inventory.ApplyInbound(ctx, tx, inventory.InboundInput{
				WarehouseID: imp.WarehouseID,
				ProductID:   productID,
				Qty:         item.Quantity,
				UnitCost:    item.UnitCostIDR,
				Note:        fmt.Sprintf("import %s", imp.DocNumber),
				ActorID:     actor.ID,
				RefModule:   approvalModule,
				RefID:       imp.DocNumber,
			})
			if err != nil {
				return err
			}
		}

		verified, err := tx.MarkVerified(ctx, id, actor.ID)
		if err != nil {
			return err
		}
		if !verified {
			return shared.ConcurrentModification("import %d was verified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.approvals != nil {
		err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   shared.DocRef(approvalModule, id),
			ActorID: actor.ID,
			Action:  shared.ApprovalVerify,
		})
		if err != nil {
			s.logger.Warn("record verify approval", slog.Int64("import_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actor.ID, "import.verified", id, nil)
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// validateItems checks category-specific identity fields over every item and
// returns all failures at once.
func validateItems(items []ImportItem) []shared.InvalidItem {
	var invalid []shared.InvalidItem
	for i, it := range items {
		idx := i + 1
		if strings.TrimSpace(it.Name) == "" {
			invalid = append(invalid, shared.InvalidItem{Index: idx, Field: "name", Reason: "is required"})
		}
		switch it.Category {
		case products.CategorySerialized:
			if !hasValue(it.SerialNo) {
				invalid = append(invalid, shared.InvalidItem{Index: idx, Field: "serial_number", Reason: "is required for serialized products"})
			}
		case products.CategoryNonSerialized, products.CategoryBulk:
			if !hasValue(it.PartNumber) && !hasValue(it.BatchNumber) {
				invalid = append(invalid, shared.InvalidItem{Index: idx, Field: "part_number", Reason: "a part number or batch number is required"})
			}
			if !hasValue(it.UOM) {
				invalid = append(invalid, shared.InvalidItem{Index: idx, Field: "uom", Reason: "is required"})
			}
		default:
			invalid = append(invalid, shared.InvalidItem{Index: idx, Field: "category", Reason: fmt.Sprintf("unknown category %q", it.Category)})
		}
	}
	return invalid
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// Delete removes a pending import. Verified imports are refused here; their
// removal is a separate, more privileged operation.
func (s *Service) Delete(ctx context.Context, actor rbac.Actor, id int64) error {
	if !actor.Can(shared.PermImportDelete) {
		return shared.PermissionDenied(shared.PermImportDelete)
	}
	imp, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if imp.Status != ImportStatusPending {
		return shared.InvalidTransition("import %s is %s; only pending imports can be deleted", imp.DocNumber, imp.Status)
	}
	deleted, err := s.repo.DeletePending(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return shared.ConcurrentModification("import %d was verified concurrently", id)
	}
	s.recordAudit(ctx, actor.ID, "import.deleted", id, map[string]any{"doc_number": imp.DocNumber})
	s.invalidate(ctx, id)
	return nil
}

// ForceDeleteVerified removes a verified import record. The products and
// stock movements it materialised stay; the ledger's provenance reference
// outlives the document.
func (s *Service) ForceDeleteVerified(ctx context.Context, actor rbac.Actor, id int64) error {
	if !actor.Can(shared.PermImportDeleteVerified) {
		return shared.PermissionDenied(shared.PermImportDeleteVerified)
	}
	imp, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if imp.Status != ImportStatusVerified {
		return shared.InvalidTransition("import %s is %s; use the regular delete", imp.DocNumber, imp.Status)
	}
	if err := s.repo.DeleteVerified(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "import.force_deleted", id, map[string]any{
		"doc_number": imp.DocNumber,
		"item_count": len(imp.Items),
		"total_idr":  imp.TotalIDR,
	})
	s.invalidate(ctx, id)
	return nil
}

// History returns the lifecycle records of one import.
func (s *Service) History(ctx context.Context, actor rbac.Actor, id int64) ([]shared.ApprovalLog, error) {
	if !actor.Can(shared.PermImportView) {
		return nil, shared.PermissionDenied(shared.PermImportView)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, shared.DocRef(approvalModule, id))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, auditEntity, id); err != nil {
		s.logger.Warn("invalidate cache", slog.Int64("import_id", id), slog.Any("error", err))
	}
}
