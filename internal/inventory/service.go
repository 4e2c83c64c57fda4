package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone ledger operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// InboundInput describes an inbound posting.
type InboundInput struct {
	Code        string
	WarehouseID int64
	ProductID   int64
	Qty         float64
	UnitCost    float64
	Note        string
	ActorID     int64
	RefModule   string
	RefID       string
}

// ApplyInbound records one inbound movement and reprices the balance with a
// moving average. It runs on the caller's transaction so cross-entity writes
// stay atomic.
func ApplyInbound(ctx context.Context, tx TxRepository, input InboundInput) (Movement, Balance, error) {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return Movement{}, Balance{}, errors.New("inventory: warehouse and product required")
	}
	if input.Qty <= 0 {
		return Movement{}, Balance{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Movement{}, Balance{}, ErrInvalidUnitCost
	}

	bal, err := tx.GetBalanceForUpdate(ctx, input.WarehouseID, input.ProductID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Movement{}, Balance{}, err
	}

	newQty := bal.Qty + input.Qty
	newCost := input.UnitCost
	if newQty > 0 {
		newCost = (bal.Qty*bal.AvgCost + input.Qty*input.UnitCost) / newQty
	}
	bal.Qty = newQty
	bal.AvgCost = newCost

	warehouseID := input.WarehouseID
	movement := Movement{
		Code:           defaultCode(input.Code),
		Type:           MovementTypeIn,
		ProductID:      input.ProductID,
		Qty:            input.Qty,
		UnitCost:       input.UnitCost,
		DstWarehouseID: &warehouseID,
		RefModule:      input.RefModule,
		RefID:          input.RefID,
		Note:           input.Note,
		PostedAt:       time.Now(),
		CreatedBy:      input.ActorID,
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, Balance{}, err
	}
	movement.ID = id

	if err := tx.UpsertBalance(ctx, bal); err != nil {
		return Movement{}, Balance{}, err
	}
	return movement, bal, nil
}

// PostInbound posts an inbound movement in its own transaction.
func (s *Service) PostInbound(ctx context.Context, input InboundInput) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, _, err = ApplyInbound(ctx, tx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, input)
	return movement, nil
}

// ListMovements lists ledger entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, input InboundInput) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "inventory:IN",
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%s:%d", input.RefModule, input.ProductID),
		Meta: map[string]any{
			"warehouse_id": input.WarehouseID,
			"product_id":   input.ProductID,
			"qty":          input.Qty,
			"note":         input.Note,
		},
	})
	if err != nil {
		s.logger.Warn("record inventory audit",
			slog.Int64("product_id", input.ProductID), slog.Any("error", err))
	}
}

func defaultCode(code string) string {
	if code != "" {
		return code
	}
	return fmt.Sprintf("MV-%d", time.Now().UnixNano())
}
