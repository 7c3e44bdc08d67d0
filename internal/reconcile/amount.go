package reconcile

import (
	"fmt"
	"math"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/pricing"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// roundingTolerance is the largest computed-vs-host difference, in currency
// units, still attributed to the host's floating-point rounding. Observed
// artifacts land around 0.010000000002.
const roundingTolerance = 0.011

// TermSource tags where a monetary term in the amount breakdown came from.
type TermSource string

const (
	TermItem     TermSource = "item"
	TermFee      TermSource = "fee"
	TermDiscount TermSource = "discount"
	TermReward   TermSource = "reward"
	TermShipping TermSource = "shipping"
)

// Term is one signed contribution to the order amount, in integer cents.
type Term struct {
	Source TermSource
	Label  string
	Cents  int64
}

// AmountReconciler recomputes an order's total from its parts and
// cross-checks the result against the host's grand total. It is stateless.
type AmountReconciler struct {
	cfg   pricing.Config
	trail audit.Sink
}

// NewAmountReconciler creates an amount reconciler over the store pricing
// configuration and the audit trail.
func NewAmountReconciler(cfg pricing.Config, trail audit.Sink) *AmountReconciler {
	return &AmountReconciler{cfg: cfg, trail: trail}
}

// toCents converts a currency amount to integer cents.
func toCents(v float64) int64 {
	return int64(math.Round(100 * v))
}

// Terms folds the order into its signed cent terms: one per top-level line
// item, then fee, discount, reward, and shipping as applicable. Child rows of
// composite products are skipped to avoid double counting.
func (r *AmountReconciler) Terms(order *domain.Order) []Term {
	var terms []Term

	for _, item := range order.Items {
		if !item.TopLevel() {
			continue
		}
		qty := float64(int(item.QtyOrdered))
		terms = append(terms, Term{
			Source: TermItem,
			Label:  item.Name,
			Cents:  toCents(r.cfg.RoundPrice(qty * item.PriceInclTax)),
		})
	}

	if fee := r.cfg.PaymentFee(); fee > 0 {
		terms = append(terms, Term{Source: TermFee, Label: "Payment fee", Cents: toCents(fee)})
	}

	// Discounts come through as negative or zero amounts.
	if d := order.DiscountAmount + order.ShippingDiscountAmount; d != 0 {
		terms = append(terms, Term{Source: TermDiscount, Label: "Discount", Cents: toCents(d)})
	}

	if reward := order.BaseRewardCurrencyAmount; reward != 0 {
		terms = append(terms, Term{Source: TermReward, Label: "Reward points", Cents: -toCents(reward)})
	}

	if !order.IsVirtual {
		terms = append(terms, Term{
			Source: TermShipping,
			Label:  order.ShippingDescription,
			Cents:  toCents(order.ShippingInclTax),
		})
	}

	return terms
}

// ComputeOrderAmount returns the penny-exact amount to charge for the order.
//
// Orders carrying any discount short-circuit to the host grand total:
// per-line discount attribution is not supported, by documented limitation.
// Otherwise the amount is accumulated in integer cents from Terms and
// compared, store-rounded, against the host grand total. A difference inside
// (0, 0.011] is a known rounding artifact: a warning goes to the audit trail
// and the computed amount wins. A larger difference means the computation
// missed an order adjustment, so the host total wins.
func (r *AmountReconciler) ComputeOrderAmount(order *domain.Order) float64 {
	if math.Abs(order.DiscountAmount) > 0 {
		return order.GrandTotal
	}

	var cents int64
	for _, t := range r.Terms(order) {
		cents += t.Cents
	}
	amount := float64(cents) / 100

	diff := math.Abs(r.cfg.RoundPrice(amount) - r.cfg.RoundPrice(order.GrandTotal))
	switch {
	case diff == 0:
		return amount
	case diff <= roundingTolerance:
		r.trail.Append(order.IncrementID,
			fmt.Sprintf("Warning: Price rounding issue. %v vs %v", order.GrandTotal, amount))
		if telemetry.Business != nil {
			telemetry.Business.AmountRoundingWarnings.Inc()
		}
		return amount
	default:
		if telemetry.Business != nil {
			telemetry.Business.AmountFallbacks.Inc()
		}
		return order.GrandTotal
	}
}
