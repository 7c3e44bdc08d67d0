package invoice_test

import (
	"strings"
	"testing"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/invoice"
	"github.com/dukerupert/skuld/internal/pricing"
	"github.com/stretchr/testify/assert"
)

func printOrder() *domain.Order {
	return &domain.Order{
		ID:          42,
		IncrementID: "100000042",
		Items: []domain.LineItem{
			{ID: 1, Name: "House Blend - 1lb", QtyOrdered: 2, Price: 4.00, PriceInclTax: 5.00, TaxPercent: 25, NoDiscount: true},
		},
		ShippingAmount:      2.00,
		ShippingTaxAmount:   0.50,
		ShippingInclTax:     2.50,
		ShippingDescription: "Flat Rate",
		GrandTotal:          12.50,
	}
}

// Test_PrintXML_Document validates the complete serialized document for a
// plain physical order: one item line plus the shipping line, flat output
// with the required root element and namespace declarations.
func Test_PrintXML_Document(t *testing.T) {
	p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())

	out, err := p.PrintXML(printOrder())

	assert.NoError(t, err)
	assert.Equal(t,
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<OnlineInvoice xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:xsd="http://www.w3.org/2001/XMLSchema">`+
			`<OrderLines>`+
			`<OrderLine><Product>House Blend - 1lb</Product><Qty>2</Qty><UnitPrice>4</UnitPrice><VatRate>25</VatRate><VatAmount>2</VatAmount><Amount>10</Amount></OrderLine>`+
			`<OrderLine><Product>Flat Rate</Product><Qty>1</Qty><UnitPrice>2</UnitPrice><VatRate>25</VatRate><VatAmount>0.5</VatAmount><Amount>2.5</Amount></OrderLine>`+
			`</OrderLines></OnlineInvoice>`,
		out)
}

// Test_PrintXML_ConditionalLines validates that discount, reward, and fee
// lines appear only when their amounts apply.
func Test_PrintXML_ConditionalLines(t *testing.T) {
	t.Run("all optional lines present", func(t *testing.T) {
		p := invoice.NewProjector(pricing.NewStore(1.50), audit.NewMemory())
		order := printOrder()
		order.DiscountAmount = -2.00
		order.DiscountDescription = "SUMMER10"
		order.BaseRewardCurrencyAmount = 1.00

		out, err := p.PrintXML(order)

		assert.NoError(t, err)
		assert.Contains(t, out, "<Product>Discount (SUMMER10)</Product>")
		assert.Contains(t, out, "<UnitPrice>-2</UnitPrice>")
		assert.Contains(t, out, "<Product>Reward points</Product>")
		assert.Contains(t, out, "<UnitPrice>-1</UnitPrice>")
		assert.Contains(t, out, "<Product>Payment fee</Product>")
		assert.Contains(t, out, "<UnitPrice>1.5</UnitPrice>")
	})

	t.Run("discount without description uses plain label", func(t *testing.T) {
		p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())
		order := printOrder()
		order.ShippingDiscountAmount = -0.50

		out, err := p.PrintXML(order)

		assert.NoError(t, err)
		assert.Contains(t, out, "<Product>Discount</Product>")
	})

	t.Run("no optional amounts no optional lines", func(t *testing.T) {
		p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())

		out, err := p.PrintXML(printOrder())

		assert.NoError(t, err)
		assert.NotContains(t, out, "Discount")
		assert.NotContains(t, out, "Reward points")
		assert.NotContains(t, out, "Payment fee")
	})

	t.Run("virtual order has no shipping line", func(t *testing.T) {
		p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())
		order := printOrder()
		order.IsVirtual = true

		out, err := p.PrintXML(order)

		assert.NoError(t, err)
		assert.NotContains(t, out, "Flat Rate")
	})
}

// Test_PrintXML_SkipsChildItems validates composite product children are not
// projected as lines of their own.
func Test_PrintXML_SkipsChildItems(t *testing.T) {
	p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())
	order := printOrder()
	order.Items = append(order.Items, domain.LineItem{
		ID: 2, ParentItemID: 1, Name: "Bundle child", QtyOrdered: 1, PriceInclTax: 99.99, NoDiscount: true,
	})

	out, err := p.PrintXML(order)

	assert.NoError(t, err)
	assert.NotContains(t, out, "Bundle child")
	assert.Equal(t, 2, strings.Count(out, "<OrderLine>"), "item line plus shipping line only")
}

// Test_PrintXML_BundleVatRate validates bundle products derive their VAT rate
// from the inclusive/exclusive price delta instead of the stored percent.
func Test_PrintXML_BundleVatRate(t *testing.T) {
	tests := []struct {
		name     string
		item     domain.LineItem
		wantRate string
	}{
		{
			name: "rate recomputed from price delta",
			item: domain.LineItem{
				ID: 1, Name: "Starter Kit", ProductType: domain.ProductTypeBundle,
				QtyOrdered: 1, Price: 80.00, PriceInclTax: 100.00, TaxPercent: 99, NoDiscount: true,
			},
			// taxPrice 20, priceWithTax 100: 100 / ((100-20)/20) = 25
			wantRate: "25",
		},
		{
			name: "zero tax price yields zero rate",
			item: domain.LineItem{
				ID: 1, Name: "Tax Free Kit", ProductType: domain.ProductTypeBundle,
				QtyOrdered: 1, Price: 50.00, PriceInclTax: 50.00, TaxPercent: 99, NoDiscount: true,
			},
			wantRate: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())
			order := &domain.Order{
				IncrementID: "100000043",
				IsVirtual:   true,
				Items:       []domain.LineItem{tt.item},
			}

			out, err := p.PrintXML(order)

			assert.NoError(t, err)
			assert.Contains(t, out, "<VatRate>"+tt.wantRate+"</VatRate>")
			assert.NotContains(t, out, "<VatRate>99</VatRate>", "stored percent must not be used")
		})
	}
}

// Test_PrintXML_NoEmbeddedNewlines validates flat single-line output even
// when host-supplied names contain newlines.
func Test_PrintXML_NoEmbeddedNewlines(t *testing.T) {
	p := invoice.NewProjector(pricing.NewStore(0), audit.NewMemory())
	order := printOrder()
	order.Items[0].Name = "House Blend\n1lb"

	out, err := p.PrintXML(order)

	assert.NoError(t, err)
	assert.NotContains(t, out, "\n")
}

// Test_PrintXML_DiscountedItemWarning validates that an item without the
// no-discount flag surfaces a warning in the audit trail.
func Test_PrintXML_DiscountedItemWarning(t *testing.T) {
	trail := audit.NewMemory()
	p := invoice.NewProjector(pricing.NewStore(0), trail)
	order := printOrder()
	order.Items[0].NoDiscount = false

	_, err := p.PrintXML(order)

	assert.NoError(t, err)
	assert.Contains(t, trail.Messages("100000042"),
		"Warning: The product has a discount. There might be problems.")
}
