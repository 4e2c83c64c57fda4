package imports

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mitra-erp/mitra-erp/internal/inventory"
	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

type memoryImportRepo struct {
	imports   map[int64]*Import
	products  map[int64]products.Product
	movements []inventory.Movement
	balances  map[string]inventory.Balance

	nextID     int64
	nextItemID int64
	nextProdID int64
	nextMoveID int64
	seq        int64

	// beforeVerify runs just before the conditional verified flip, which is
	// where a concurrent verification would land.
	beforeVerify func()
}

func newMemoryImportRepo() *memoryImportRepo {
	return &memoryImportRepo{
		imports:  make(map[int64]*Import),
		products: make(map[int64]products.Product),
		balances: make(map[string]inventory.Balance),
	}
}

func balanceKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

func (r *memoryImportRepo) Get(ctx context.Context, id int64) (*Import, error) {
	imp, ok := r.imports[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *imp
	cp.Items = append([]ImportItem(nil), imp.Items...)
	return &cp, nil
}

func (r *memoryImportRepo) List(ctx context.Context, filter ListFilter) ([]Import, int, error) {
	var out []Import
	for _, imp := range r.imports {
		if filter.Status != "" && imp.Status != filter.Status {
			continue
		}
		out = append(out, *imp)
	}
	return out, len(out), nil
}

func (r *memoryImportRepo) Create(ctx context.Context, imp *Import) (int64, error) {
	r.nextID++
	imp.ID = r.nextID
	r.seq++
	imp.DocNumber = fmt.Sprintf("IMP-2608-%04d", r.seq)
	for i := range imp.Items {
		r.nextItemID++
		imp.Items[i].ID = r.nextItemID
		imp.Items[i].ImportID = imp.ID
		imp.Items[i].LineOrder = i + 1
	}
	r.imports[imp.ID] = imp
	return imp.ID, nil
}

func (r *memoryImportRepo) DeletePending(ctx context.Context, id int64) (bool, error) {
	imp, ok := r.imports[id]
	if !ok || imp.Status != ImportStatusPending {
		return false, nil
	}
	delete(r.imports, id)
	return true, nil
}

func (r *memoryImportRepo) DeleteVerified(ctx context.Context, id int64) error {
	delete(r.imports, id)
	return nil
}

func (r *memoryImportRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, &memoryImportTx{repo: r})
}

type memoryImportTx struct {
	repo *memoryImportRepo
}

func (t *memoryImportTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	t.repo.nextMoveID++
	m.ID = t.repo.nextMoveID
	t.repo.movements = append(t.repo.movements, m)
	return m.ID, nil
}

func (t *memoryImportTx) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (inventory.Balance, error) {
	bal, ok := t.repo.balances[balanceKey(warehouseID, productID)]
	if !ok {
		return inventory.Balance{WarehouseID: warehouseID, ProductID: productID}, inventory.ErrBalanceNotFound
	}
	return bal, nil
}

func (t *memoryImportTx) UpsertBalance(ctx context.Context, bal inventory.Balance) error {
	t.repo.balances[balanceKey(bal.WarehouseID, bal.ProductID)] = bal
	return nil
}

func (t *memoryImportTx) GetForUpdate(ctx context.Context, id int64) (*Import, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryImportTx) ProductExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.repo.products[id]
	return ok, nil
}

func (t *memoryImportTx) CreateProduct(ctx context.Context, p products.Product) (int64, error) {
	t.repo.nextProdID++
	p.ID = t.repo.nextProdID
	p.IsActive = true
	t.repo.products[p.ID] = p
	return p.ID, nil
}

func (t *memoryImportTx) SetItemProduct(ctx context.Context, itemID, productID int64) error {
	for _, imp := range t.repo.imports {
		for i := range imp.Items {
			if imp.Items[i].ID == itemID {
				imp.Items[i].ProductID = &productID
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (t *memoryImportTx) MarkVerified(ctx context.Context, id, actorID int64) (bool, error) {
	if t.repo.beforeVerify != nil {
		hook := t.repo.beforeVerify
		t.repo.beforeVerify = nil
		hook()
	}
	imp, ok := t.repo.imports[id]
	if !ok || imp.Status != ImportStatusPending {
		return false, nil
	}
	now := time.Now()
	imp.Status = ImportStatusVerified
	imp.VerifiedBy = &actorID
	imp.VerifiedAt = &now
	return true, nil
}

func (t *memoryImportTx) NextNumber(ctx context.Context, docType string, at time.Time) (string, error) {
	t.repo.seq++
	return fmt.Sprintf("%s-%s-%04d", docType, at.Format("0601"), t.repo.seq), nil
}

type memoryImportApprovals struct {
	logs []shared.ApprovalLog
}

func (a *memoryImportApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryImportApprovals) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

type memoryImportAudit struct {
	logs []shared.AuditLog
}

func (a *memoryImportAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type importFixture struct {
	svc       *Service
	repo      *memoryImportRepo
	approvals *memoryImportApprovals
	audit     *memoryImportAudit
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	f := &importFixture{
		repo:      newMemoryImportRepo(),
		approvals: &memoryImportApprovals{},
		audit:     &memoryImportAudit{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.repo, f.approvals, f.audit, nil, logger)
	return f
}

func importActor(id int64) rbac.Actor {
	return rbac.NewActor(id, false, []string{
		shared.PermImportView, shared.PermImportCreate, shared.PermImportVerify,
		shared.PermImportDelete, shared.PermImportDeleteVerified,
	})
}

func str(s string) *string { return &s }

func wellFormedInput() CreateInput {
	return CreateInput{
		SupplierName: "Shanghai Heavy Machinery Co",
		ContainerNo:  str("MSKU-884212-0"),
		WarehouseID:  3,
		ExchangeRate: 2150,
		Items: []ItemInput{
			{
				Category:    products.CategorySerialized,
				Name:        "Excavator XE215C",
				MachineType: str("Excavator"),
				Model:       str("XE215C"),
				SerialNo:    str("XE215C-2026-0042"),
				Quantity:    1,
				UnitCostRMB: 480000,
			},
			{
				Category:    products.CategoryNonSerialized,
				Name:        "Hydraulic pump assembly",
				PartNumber:  str("HP-2214"),
				UOM:         str("PCS"),
				Quantity:    4,
				UnitCostRMB: 6200,
			},
			{
				Category:    products.CategoryBulk,
				Name:        "Hydraulic oil 46",
				BatchNumber: str("B-2026-118"),
				UOM:         str("DRUM"),
				Quantity:    10,
				UnitCostRMB: 850,
			},
		},
	}
}

func TestCreateFixesExchangeRate(t *testing.T) {
	f := newImportFixture(t)
	imp, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	require.Equal(t, ImportStatusPending, imp.Status)
	require.Contains(t, imp.DocNumber, "IMP-")
	require.Len(t, imp.Items, 3)

	// Costs in IDR are derived once at creation time with the supplied rate.
	require.InDelta(t, 480000*2150.0, imp.Items[0].UnitCostIDR, 0.001)
	require.InDelta(t, 6200*2150.0, imp.Items[1].UnitCostIDR, 0.001)
	require.InDelta(t, 480000+4*6200+10*850.0, imp.TotalRMB, 0.001)
	require.InDelta(t, imp.TotalRMB*2150, imp.TotalIDR, 0.001)
}

func TestCreateCollectsEveryFailure(t *testing.T) {
	f := newImportFixture(t)
	_, err := f.svc.Create(context.Background(), importActor(1), CreateInput{
		SupplierName: "  ",
		WarehouseID:  0,
		ExchangeRate: 0,
		Items: []ItemInput{
			{Category: products.CategoryBulk, Name: "Oil", Quantity: 0, UnitCostRMB: -1},
		},
	})
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
	wf, _ := shared.AsWorkflowError(err)
	require.Len(t, wf.InvalidItems, 5)
}

func TestVerifyMaterialisesProductsAndMovements(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	imp, err := f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.NoError(t, err)

	require.Equal(t, ImportStatusVerified, imp.Status)
	require.NotNil(t, imp.VerifiedBy)
	require.Equal(t, int64(2), *imp.VerifiedBy)
	require.NotNil(t, imp.VerifiedAt)

	// One product per item, linked back to the originating line.
	require.Len(t, f.repo.products, 3)
	for _, item := range imp.Items {
		require.NotNil(t, item.ProductID)
		p := f.repo.products[*item.ProductID]
		require.Equal(t, item.Name, p.Name)
		require.Equal(t, item.Category, p.Category)
		require.InDelta(t, item.UnitCostIDR, p.Cost, 0.001)
		require.Contains(t, p.Code, "PRD-")
	}

	// One inbound ledger entry per item carrying the document as provenance.
	require.Len(t, f.repo.movements, 3)
	for _, m := range f.repo.movements {
		require.Equal(t, inventory.MovementTypeIn, m.Type)
		require.Equal(t, "imports", m.RefModule)
		require.Equal(t, imp.DocNumber, m.RefID)
		require.NotNil(t, m.DstWarehouseID)
		require.Equal(t, int64(3), *m.DstWarehouseID)
	}

	// Fresh balances take the landed cost as their average.
	serialized := imp.Items[0]
	bal := f.repo.balances[balanceKey(3, *serialized.ProductID)]
	require.InDelta(t, 1.0, bal.Qty, 0.001)
	require.InDelta(t, serialized.UnitCostIDR, bal.AvgCost, 0.001)

	logs, err := f.svc.History(context.Background(), importActor(1), created.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, shared.ApprovalVerify, logs[0].Action)
}

func TestVerifyCollectsEveryItemFailure(t *testing.T) {
	f := newImportFixture(t)
	input := wellFormedInput()
	input.Items[0].SerialNo = nil
	input.Items[1].PartNumber = nil
	input.Items[1].UOM = nil
	created, err := f.svc.Create(context.Background(), importActor(1), input)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
	wf, _ := shared.AsWorkflowError(err)
	require.Len(t, wf.InvalidItems, 3)

	fields := make(map[string]int)
	for _, item := range wf.InvalidItems {
		fields[item.Field]++
	}
	require.Equal(t, 1, fields["serial_number"])
	require.Equal(t, 1, fields["part_number"])
	require.Equal(t, 1, fields["uom"])

	// Nothing was materialised and the import stays pending.
	require.Empty(t, f.repo.products)
	require.Empty(t, f.repo.movements)
	current, err := f.repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, ImportStatusPending, current.Status)
}

func TestVerifyReusesReferencedProduct(t *testing.T) {
	f := newImportFixture(t)
	f.repo.products[77] = products.Product{
		ID: 77, Code: "PRD-2601-0009", Name: "Hydraulic pump assembly",
		Category: products.CategoryNonSerialized, IsActive: true,
	}

	input := wellFormedInput()
	pumpID := int64(77)
	input.Items[1].ProductID = &pumpID
	created, err := f.svc.Create(context.Background(), importActor(1), input)
	require.NoError(t, err)

	imp, err := f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.NoError(t, err)

	// Two new products plus the pre-existing one; the referenced line keeps
	// its catalogue id instead of getting a duplicate.
	require.Len(t, f.repo.products, 3)
	require.NotNil(t, imp.Items[1].ProductID)
	require.Equal(t, int64(77), *imp.Items[1].ProductID)

	require.Len(t, f.repo.movements, 3)
	require.Equal(t, int64(77), f.repo.movements[1].ProductID)
	bal := f.repo.balances[balanceKey(3, 77)]
	require.InDelta(t, 4.0, bal.Qty, 0.001)
}

func TestVerifyReferencedProductVanished(t *testing.T) {
	f := newImportFixture(t)
	input := wellFormedInput()
	goneID := int64(999)
	input.Items[0].ProductID = &goneID
	created, err := f.svc.Create(context.Background(), importActor(1), input)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.True(t, shared.IsKind(err, shared.KindDependencyUnavailable))
	wf, _ := shared.AsWorkflowError(err)
	require.Len(t, wf.InvalidItems, 1)
	require.Equal(t, 1, wf.InvalidItems[0].Index)
	require.Equal(t, "product_id", wf.InvalidItems[0].Field)

	// Nothing was materialised and the import stays pending.
	require.Empty(t, f.repo.movements)
	current, err := f.repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, ImportStatusPending, current.Status)
}

func TestVerifyTwice(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
	require.Len(t, f.repo.products, 3)
	require.Len(t, f.repo.movements, 3)
}

func TestVerifyDetectsConcurrentVerification(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	f.repo.beforeVerify = func() {
		f.repo.imports[created.ID].Status = ImportStatusVerified
	}
	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.True(t, shared.IsKind(err, shared.KindConcurrentModification))
}

func TestVerifyRequiresPermission(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	viewer := rbac.NewActor(5, false, []string{shared.PermImportView})
	_, err = f.svc.Verify(context.Background(), viewer, created.ID)
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
}

func TestDeletePending(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), importActor(1), created.ID))
	_, err = f.repo.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRefusesVerified(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), importActor(1), created.ID)
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
}

func TestForceDeleteVerifiedKeepsLedger(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)
	verified, err := f.svc.Verify(context.Background(), importActor(2), created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ForceDeleteVerified(context.Background(), importActor(1), created.ID))
	_, err = f.repo.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The document is gone; the goods it brought in are not.
	require.Len(t, f.repo.products, 3)
	require.Len(t, f.repo.movements, 3)
	for _, m := range f.repo.movements {
		require.Equal(t, verified.DocNumber, m.RefID)
	}
}

func TestForceDeleteRefusesPending(t *testing.T) {
	f := newImportFixture(t)
	created, err := f.svc.Create(context.Background(), importActor(1), wellFormedInput())
	require.NoError(t, err)

	err = f.svc.ForceDeleteVerified(context.Background(), importActor(1), created.ID)
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
}

func TestValidateItemsUnknownCategory(t *testing.T) {
	invalid := validateItems([]ImportItem{{Category: "MYSTERY", Name: "Thing", Quantity: 1}})
	require.Len(t, invalid, 1)
	require.Equal(t, "category", invalid[0].Field)
}
