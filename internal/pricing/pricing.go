package pricing

import (
	"math"

	"sonara/backend/internal/domain"
)

// Built-in per-gram fallback rates in paise, used when no daily price record
// exists for a metal at all. Lookups always prefer the stored record for the
// requested day, then the most recent earlier record.
var defaultRates = map[domain.Metal]int64{
	domain.MetalGold:     920000,
	domain.MetalSilver:   11500,
	domain.MetalDiamond:  6500000,
	domain.MetalPlatinum: 310000,
	domain.MetalOther:    50000,
}

func DefaultRate(metal domain.Metal) int64 {
	if rate, ok := defaultRates[metal]; ok {
		return rate
	}
	return defaultRates[domain.MetalOther]
}

// ResolvedLine is a line item after Phase 1: inventory state and the
// per-gram rate are resolved, so Compute can run without any I/O.
type ResolvedLine struct {
	InventoryItemID string
	Custom          bool
	Name            string
	Metal           domain.Metal
	Quantity        int
	// WeightGrams is per piece for stock-backed lines and the total piece
	// weight for custom lines (which always have Quantity 1).
	WeightGrams  float64
	PricePerGram int64
}

type Quote struct {
	Items         []domain.SaleItem
	Subtotal      int64
	TaxAmount     int64
	GrandTotal    int64
	TotalReceived int64
	CreditAmount  int64
	ChangeDue     int64
	PaymentStatus string
}

// Compute performs the whole sale calculation as pure arithmetic:
// per line, metalValue = weight x rate x qty, plus making-charge and
// wastage percentages; summed with flat additional charges into the
// subtotal; tax on top; then payment resolution against the tendered
// amounts. A pure credit payment method always yields pending regardless
// of what was tendered.
func Compute(lines []ResolvedLine, makingPct float64, wastagePct float64, taxPct float64, additionalCharges int64, cashReceived int64, cardOrUPIReceived int64, paymentMethod string) Quote {
	quote := Quote{Items: make([]domain.SaleItem, 0, len(lines))}

	for _, line := range lines {
		perPiece := int64(math.Round(line.WeightGrams * float64(line.PricePerGram)))
		qty := line.Quantity
		if line.Custom {
			qty = 1
		}
		metalValue := perPiece * int64(qty)
		making := int64(math.Round(float64(metalValue) * makingPct / 100))
		wastage := int64(math.Round(float64(metalValue) * wastagePct / 100))
		lineTotal := metalValue + making + wastage

		quote.Items = append(quote.Items, domain.SaleItem{
			InventoryItemID: line.InventoryItemID,
			Custom:          line.Custom,
			Name:            line.Name,
			Metal:           line.Metal,
			Quantity:        qty,
			WeightGrams:     line.WeightGrams,
			PricePerGram:    line.PricePerGram,
			MetalValue:      metalValue,
			MakingCharges:   making,
			Wastage:         wastage,
			LineTotal:       lineTotal,
		})
		quote.Subtotal += lineTotal
	}

	quote.Subtotal += additionalCharges
	quote.TaxAmount = int64(math.Round(float64(quote.Subtotal) * taxPct / 100))
	quote.GrandTotal = quote.Subtotal + quote.TaxAmount

	if paymentMethod == domain.PaymentMethodCredit {
		quote.TotalReceived = 0
	} else {
		quote.TotalReceived = cashReceived + cardOrUPIReceived
	}

	quote.CreditAmount = quote.GrandTotal - quote.TotalReceived
	if quote.CreditAmount < 0 {
		quote.ChangeDue = -quote.CreditAmount
		quote.CreditAmount = 0
	}

	switch {
	case quote.CreditAmount == 0:
		quote.PaymentStatus = domain.PaymentStatusPaid
	case quote.TotalReceived == 0:
		quote.PaymentStatus = domain.PaymentStatusPending
	default:
		quote.PaymentStatus = domain.PaymentStatusPartial
	}

	return quote
}
