package pricing

import (
	"testing"

	"sonara/backend/internal/domain"
)

func TestComputeGoldRingFullyPaid(t *testing.T) {
	// 10g at 9200 rupees/gram, 15% making, 2% wastage, 3% tax.
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Name: "Gold Ring 22K", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 10, PricePerGram: 920000},
	}

	quote := Compute(lines, 15, 2, 3, 0, 11086920, 0, domain.PaymentMethodCash)

	if got := quote.Items[0].MetalValue; got != 9200000 {
		t.Fatalf("metal value = %d, want 9200000", got)
	}
	if got := quote.Items[0].MakingCharges; got != 1380000 {
		t.Fatalf("making charges = %d, want 1380000", got)
	}
	if got := quote.Items[0].Wastage; got != 184000 {
		t.Fatalf("wastage = %d, want 184000", got)
	}
	if quote.Subtotal != 10764000 {
		t.Fatalf("subtotal = %d, want 10764000", quote.Subtotal)
	}
	if quote.TaxAmount != 322920 {
		t.Fatalf("tax = %d, want 322920", quote.TaxAmount)
	}
	if quote.GrandTotal != 11086920 {
		t.Fatalf("grand total = %d, want 11086920", quote.GrandTotal)
	}
	if quote.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", quote.PaymentStatus)
	}
	if quote.CreditAmount != 0 || quote.ChangeDue != 0 {
		t.Fatalf("credit = %d, change = %d, want both 0", quote.CreditAmount, quote.ChangeDue)
	}
}

func TestComputeMultiplePiecesAndAdditionalCharges(t *testing.T) {
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalSilver, Quantity: 3, WeightGrams: 10, PricePerGram: 11500},
	}

	quote := Compute(lines, 0, 0, 0, 5000, 350000, 0, domain.PaymentMethodCash)

	// 3 pieces x 10g x 115 rupees/g = 345000 paise, plus 5000 flat.
	if quote.Subtotal != 350000 {
		t.Fatalf("subtotal = %d, want 350000", quote.Subtotal)
	}
	if quote.GrandTotal != 350000 {
		t.Fatalf("grand total = %d, want 350000", quote.GrandTotal)
	}
	if quote.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", quote.PaymentStatus)
	}
}

func TestComputeCustomLineIgnoresQuantity(t *testing.T) {
	lines := []ResolvedLine{
		{Custom: true, Name: "Commission Pendant", Metal: domain.MetalGold, Quantity: 7, WeightGrams: 4.5, PricePerGram: 920000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 0, 0, domain.PaymentMethodCash)

	if quote.Items[0].Quantity != 1 {
		t.Fatalf("custom line quantity = %d, want 1", quote.Items[0].Quantity)
	}
	if quote.Subtotal != 4140000 {
		t.Fatalf("subtotal = %d, want 4140000", quote.Subtotal)
	}
}

func TestComputePartialPayment(t *testing.T) {
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 1, PricePerGram: 1000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 400, 0, domain.PaymentMethodCash)

	if quote.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("status = %s, want partial", quote.PaymentStatus)
	}
	if quote.CreditAmount != 600 {
		t.Fatalf("credit = %d, want 600", quote.CreditAmount)
	}
}

func TestComputeNothingTenderedIsPending(t *testing.T) {
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 1, PricePerGram: 1000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 0, 0, domain.PaymentMethodCash)

	if quote.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", quote.PaymentStatus)
	}
	if quote.CreditAmount != 1000 {
		t.Fatalf("credit = %d, want 1000", quote.CreditAmount)
	}
}

func TestComputeCreditMethodIgnoresTendered(t *testing.T) {
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 1, PricePerGram: 1000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 1000, 0, domain.PaymentMethodCredit)

	if quote.TotalReceived != 0 {
		t.Fatalf("total received = %d, want 0", quote.TotalReceived)
	}
	if quote.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", quote.PaymentStatus)
	}
	if quote.CreditAmount != 1000 {
		t.Fatalf("credit = %d, want 1000", quote.CreditAmount)
	}
}

func TestComputeOverpaymentYieldsChange(t *testing.T) {
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 1, PricePerGram: 1000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 1500, 0, domain.PaymentMethodCash)

	if quote.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", quote.PaymentStatus)
	}
	if quote.ChangeDue != 500 {
		t.Fatalf("change = %d, want 500", quote.ChangeDue)
	}
	if quote.CreditAmount != 0 {
		t.Fatalf("credit = %d, want 0", quote.CreditAmount)
	}
}

func TestComputeRoundsFractionalWeights(t *testing.T) {
	// 2.345g x 920000 paise/g = 2157400 exactly; 0.333g x 1000 = 333.0
	lines := []ResolvedLine{
		{InventoryItemID: "item-1", Metal: domain.MetalGold, Quantity: 1, WeightGrams: 2.345, PricePerGram: 920000},
	}

	quote := Compute(lines, 0, 0, 0, 0, 0, 0, domain.PaymentMethodCash)

	if quote.Items[0].MetalValue != 2157400 {
		t.Fatalf("metal value = %d, want 2157400", quote.Items[0].MetalValue)
	}
}

func TestDefaultRateFallsBackToOther(t *testing.T) {
	if rate := DefaultRate(domain.MetalGold); rate != 920000 {
		t.Fatalf("gold default = %d, want 920000", rate)
	}
	if rate := DefaultRate(domain.Metal("unobtainium")); rate != DefaultRate(domain.MetalOther) {
		t.Fatalf("unknown metal should fall back to the other rate, got %d", rate)
	}
}
