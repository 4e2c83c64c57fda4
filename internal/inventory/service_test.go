package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

type fakeLedgerTx struct {
	movements []Movement
	balances  map[int64]Balance
	nextID    int64
}

func newFakeLedgerTx() *fakeLedgerTx {
	return &fakeLedgerTx{balances: make(map[int64]Balance)}
}

func (t *fakeLedgerTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	t.nextID++
	m.ID = t.nextID
	t.movements = append(t.movements, m)
	return m.ID, nil
}

func (t *fakeLedgerTx) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error) {
	bal, ok := t.balances[productID]
	if !ok {
		return Balance{WarehouseID: warehouseID, ProductID: productID}, ErrBalanceNotFound
	}
	return bal, nil
}

func (t *fakeLedgerTx) UpsertBalance(ctx context.Context, bal Balance) error {
	t.balances[bal.ProductID] = bal
	return nil
}

func TestApplyInboundFirstReceipt(t *testing.T) {
	tx := newFakeLedgerTx()
	movement, bal, err := ApplyInbound(context.Background(), tx, InboundInput{
		WarehouseID: 1, ProductID: 10, Qty: 4, UnitCost: 100,
		RefModule: "imports", RefID: "IMP-2608-0001", ActorID: 7,
	})
	require.NoError(t, err)

	require.Equal(t, MovementTypeIn, movement.Type)
	require.NotNil(t, movement.DstWarehouseID)
	require.Equal(t, int64(1), *movement.DstWarehouseID)
	require.Nil(t, movement.SrcWarehouseID)
	require.NotEmpty(t, movement.Code)

	require.InDelta(t, 4.0, bal.Qty, 0.001)
	require.InDelta(t, 100.0, bal.AvgCost, 0.001)
}

func TestApplyInboundMovingAverage(t *testing.T) {
	tx := newFakeLedgerTx()
	_, _, err := ApplyInbound(context.Background(), tx, InboundInput{WarehouseID: 1, ProductID: 10, Qty: 4, UnitCost: 100})
	require.NoError(t, err)

	_, bal, err := ApplyInbound(context.Background(), tx, InboundInput{WarehouseID: 1, ProductID: 10, Qty: 6, UnitCost: 200})
	require.NoError(t, err)

	require.InDelta(t, 10.0, bal.Qty, 0.001)
	require.InDelta(t, 160.0, bal.AvgCost, 0.001)
	require.Len(t, tx.movements, 2)
}

func TestApplyInboundRejectsBadInput(t *testing.T) {
	tx := newFakeLedgerTx()

	_, _, err := ApplyInbound(context.Background(), tx, InboundInput{WarehouseID: 1, ProductID: 10, Qty: 0, UnitCost: 10})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = ApplyInbound(context.Background(), tx, InboundInput{WarehouseID: 1, ProductID: 10, Qty: 1, UnitCost: -1})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, _, err = ApplyInbound(context.Background(), tx, InboundInput{ProductID: 10, Qty: 1, UnitCost: 1})
	require.Error(t, err)
	require.Empty(t, tx.movements)
}

type fakeLedgerRepo struct {
	tx *fakeLedgerTx
}

func (r *fakeLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r.tx)
}

func (r *fakeLedgerRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return r.tx.movements, nil
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	return errors.New("audit store down")
}

func TestPostInboundSurvivesAuditFailure(t *testing.T) {
	repo := &fakeLedgerRepo{tx: newFakeLedgerTx()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, failingAudit{}, logger)

	movement, err := svc.PostInbound(context.Background(), InboundInput{
		WarehouseID: 1, ProductID: 10, Qty: 2, UnitCost: 75,
	})
	require.NoError(t, err)
	require.NotZero(t, movement.ID)
	require.Len(t, repo.tx.movements, 1)
}

func TestApplyInboundKeepsExplicitCode(t *testing.T) {
	tx := newFakeLedgerTx()
	movement, _, err := ApplyInbound(context.Background(), tx, InboundInput{
		WarehouseID: 1, ProductID: 10, Qty: 1, UnitCost: 50, Code: "MV-CUSTOM-1",
	})
	require.NoError(t, err)
	require.Equal(t, "MV-CUSTOM-1", movement.Code)
}
