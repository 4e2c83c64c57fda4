package shared

// Permissions gating workflow transitions. Every transition names exactly one
// required permission; the oracle is consulted before any state mutation.
const (
	PermQuotationView    = "sales.quotation.view"
	PermQuotationCreate  = "sales.quotation.create"
	PermQuotationEdit    = "sales.quotation.edit"
	PermQuotationSubmit  = "sales.quotation.submit"
	PermQuotationApprove = "sales.quotation.approve"
	// PermQuotationApproveAny lets an actor approve quotations assigned to
	// another approver.
	PermQuotationApproveAny = "sales.quotation.approve.any"
	PermQuotationSend       = "sales.quotation.send"

	PermInvoiceCreate = "sales.invoice.create"
	PermInvoiceView   = "sales.invoice.view"

	PermImportView   = "imports.view"
	PermImportCreate = "imports.create"
	PermImportVerify = "imports.verify"
	PermImportDelete = "imports.delete"
	// PermImportDeleteVerified guards the destructive removal of an already
	// verified import. Materialised products and stock movements stay.
	PermImportDeleteVerified = "imports.delete.verified"
)

// WorkflowScopes lists all permissions used by the workflow core.
func WorkflowScopes() []string {
	return []string{
		PermQuotationView,
		PermQuotationCreate,
		PermQuotationEdit,
		PermQuotationSubmit,
		PermQuotationApprove,
		PermQuotationApproveAny,
		PermQuotationSend,
		PermInvoiceCreate,
		PermInvoiceView,
		PermImportView,
		PermImportCreate,
		PermImportVerify,
		PermImportDelete,
		PermImportDeleteVerified,
	}
}
