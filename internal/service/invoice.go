package service

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/store"
)

// Invoice is a rendered, customer-facing payment document for an order.
// It is generated on demand and never stored.
type Invoice struct {
	OrderNumber string    `json:"order_number"`
	IssuedAt    time.Time `json:"issued_at"`
	Body        string    `json:"body"`
}

// InvoiceService renders invoices for orders with confirmed payments.
type InvoiceService interface {
	// Generate renders the order's invoice. Orders without a confirmed
	// payment get domain.ErrInvoiceNotAvailable.
	Generate(ctx context.Context, orderNumber string) (*Invoice, error)
}

type invoiceService struct {
	store    store.Store
	merchant string
	logger   *slog.Logger
}

// NewInvoiceService creates a new InvoiceService instance
func NewInvoiceService(st store.Store, merchantName string, logger *slog.Logger) InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	if merchantName == "" {
		merchantName = "Arunika"
	}
	return &invoiceService{store: st, merchant: merchantName, logger: logger}
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": formatMoney,
}).Parse(`{{.Merchant}}
INVOICE {{.Order.OrderNumber}}
Issued {{.IssuedAt.Format "2006-01-02 15:04"}}

{{range .Order.Items -}}
{{.ProductName}} x{{.Quantity}} @ {{money .UnitPrice}}
{{- range .AddOns}}
  + {{.Name}} @ {{money .Price}}
{{- end}}
  = {{money .LineSubtotal}}
{{end -}}
{{if .Order.Shipping}}
Shipping ({{.Order.Shipping.CarrierCode}} {{.Order.Shipping.ServiceCode}}): {{money .Order.ShippingCost}}
{{end}}
Subtotal:          {{money .Order.Subtotal}}
Total:             {{money .Order.TotalAmount}}
Amount paid:       {{money .Order.AmountPaid}}
Remaining balance: {{money .RemainingBalance}}

Payment status: {{.Order.PaymentStatus}}
{{- range .Order.Payments}}
  {{.AppliedAt.Format "2006-01-02 15:04"}}  {{.GatewayRef}}  {{money .Amount}}
{{- end}}
`))

func (s *invoiceService) Generate(ctx context.Context, orderNumber string) (*Invoice, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusPartiallyPaid && order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.ErrInvoiceNotAvailable
	}

	issuedAt := time.Now()
	var buf bytes.Buffer
	err = invoiceTemplate.Execute(&buf, struct {
		Merchant         string
		Order            *domain.Order
		IssuedAt         time.Time
		RemainingBalance int64
	}{
		Merchant:         s.merchant,
		Order:            order,
		IssuedAt:         issuedAt,
		RemainingBalance: order.RemainingBalance(),
	})
	if err != nil {
		return nil, domain.Internal(err, "invoice.generate", "failed to render invoice")
	}

	s.logger.Info("invoice generated", "order_number", orderNumber)
	return &Invoice{
		OrderNumber: order.OrderNumber,
		IssuedAt:    issuedAt,
		Body:        buf.String(),
	}, nil
}

// formatMoney renders a smallest-unit amount with thousands separators,
// e.g. 1020000 becomes "1.020.000".
func formatMoney(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}
