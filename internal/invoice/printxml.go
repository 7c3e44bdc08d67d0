package invoice

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/pricing"
)

// Namespace declarations required by the receiving invoice print system.
const (
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// xmlHeader is emitted verbatim; the receiving system expects utf-8 casing.
const xmlHeader = `<?xml version="1.0" encoding="utf-8"?>`

// orderLine is one printable invoice line.
type orderLine struct {
	Product   string `xml:"Product"`
	Qty       int    `xml:"Qty"`
	UnitPrice string `xml:"UnitPrice"`
	VatRate   string `xml:"VatRate"`
	VatAmount string `xml:"VatAmount"`
	Amount    string `xml:"Amount"`
}

// onlineInvoice is the flat document root.
type onlineInvoice struct {
	XMLName xml.Name    `xml:"OnlineInvoice"`
	Xsi     string      `xml:"xmlns:xsi,attr"`
	Xsd     string      `xml:"xsi:xsd,attr"`
	Lines   []orderLine `xml:"OrderLines>OrderLine"`
}

// Projector builds the external invoice print document from an order. It
// shares the amount reconciler's line-item walk and money math.
type Projector struct {
	cfg   pricing.Config
	trail audit.Sink
}

// NewProjector creates an invoice print projector.
func NewProjector(cfg pricing.Config, trail audit.Sink) *Projector {
	return &Projector{cfg: cfg, trail: trail}
}

// fmtAmount renders a monetary value the shortest way that round-trips.
func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PrintXML projects the order into the OnlineInvoice document: one line per
// top-level item, then discount, reward, shipping, and payment fee lines when
// their amounts apply. The output is a single line with no embedded newlines.
func (p *Projector) PrintXML(order *domain.Order) (string, error) {
	var lines []orderLine

	for _, item := range order.Items {
		if !item.TopLevel() {
			continue
		}

		// Partial per-item discounts are not modeled; the projected VAT
		// figures for such items are approximate.
		if !item.NoDiscount {
			p.trail.Append(order.IncrementID, "Warning: The product has a discount. There might be problems.")
		}

		qty := int(item.QtyOrdered)
		fqty := float64(qty)
		taxPrice := p.cfg.RoundPrice(fqty*item.PriceInclTax - fqty*item.Price)
		priceWithTax := p.cfg.RoundPrice(fqty * item.PriceInclTax)

		taxPercent := item.TaxPercent
		if item.ProductType == domain.ProductTypeBundle {
			// Bundle tax allocation is unreliable upstream; derive the
			// effective rate from the inclusive/exclusive price delta.
			if taxPrice > 0 {
				taxPercent = math.Round(100 / ((priceWithTax - taxPrice) / taxPrice))
			} else {
				taxPercent = 0
			}
		}

		lines = append(lines, orderLine{
			Product:   item.Name,
			Qty:       qty,
			UnitPrice: fmtAmount(item.Price),
			VatRate:   fmtAmount(taxPercent),
			VatAmount: fmtAmount(taxPrice),
			Amount:    fmtAmount(priceWithTax),
		})
	}

	// Aggregate discount, shipping discount included; negative by convention.
	if discount := order.DiscountAmount + order.ShippingDiscountAmount; math.Abs(discount) > 0 {
		label := "Discount"
		if order.DiscountDescription != "" {
			label = "Discount (" + order.DiscountDescription + ")"
		}
		lines = append(lines, orderLine{
			Product:   label,
			Qty:       1,
			UnitPrice: fmtAmount(discount),
			VatRate:   "0",
			VatAmount: "0",
			Amount:    fmtAmount(discount),
		})
	}

	if reward := order.BaseRewardCurrencyAmount; reward > 0 {
		lines = append(lines, orderLine{
			Product:   "Reward points",
			Qty:       1,
			UnitPrice: fmtAmount(-reward),
			VatRate:   "0",
			VatAmount: "0",
			Amount:    fmtAmount(-reward),
		})
	}

	if !order.IsVirtual {
		shipping := order.ShippingAmount
		shippingTax := order.ShippingTaxAmount
		var shippingTaxPercent int
		if shipping != 0 {
			shippingTaxPercent = int(100 * shippingTax / shipping)
		}
		lines = append(lines, orderLine{
			Product:   order.ShippingDescription,
			Qty:       1,
			UnitPrice: fmtAmount(shipping),
			VatRate:   strconv.Itoa(shippingTaxPercent),
			VatAmount: fmtAmount(shippingTax),
			Amount:    fmtAmount(shipping + shippingTax),
		})
	}

	if fee := p.cfg.PaymentFee(); fee > 0 {
		lines = append(lines, orderLine{
			Product:   "Payment fee",
			Qty:       1,
			UnitPrice: fmtAmount(fee),
			VatRate:   "0",
			VatAmount: "0",
			Amount:    fmtAmount(fee),
		})
	}

	doc := onlineInvoice{
		Xsi:   xsiNamespace,
		Xsd:   xsdNamespace,
		Lines: lines,
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", domain.Internal(err, "invoice.print", "failed to serialize invoice document")
	}

	// The receiving system rejects embedded newlines; product names and
	// shipping descriptions arrive from the host and may contain them.
	return strings.ReplaceAll(xmlHeader+string(out), "\n", ""), nil
}
