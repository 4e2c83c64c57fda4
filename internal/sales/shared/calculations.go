package shared

// CalculateLineTotals derives the money amounts for one quotation/invoice
// line. Totals on the document header are always recomputed from its lines.
func CalculateLineTotals(quantity, unitPrice, taxPercent float64) (netAmount, taxAmount, lineTotal float64) {
	netAmount = quantity * unitPrice
	taxAmount = netAmount * (taxPercent / 100)
	lineTotal = netAmount + taxAmount
	return
}
