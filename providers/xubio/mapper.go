package xubio

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
)

const dateLayout = "2006-01-02"

// Mapper builds invoices from payment events. It performs no I/O and, for a
// fixed clock, returns identical output for identical input.
type Mapper struct {
	Origin          string
	UnknownCustomer string
	Now             func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{
		Origin:          core.DefaultOriginSystem,
		UnknownCustomer: core.DefaultUnknownCustomerName,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

func (m *Mapper) MapToInvoice(event core.InboundEvent, detail *core.ResolvedDetail) core.InvoicePayload {
	amount := invoiceAmount(event, detail)
	tax := 0.0
	if detail != nil && detail.Tax != nil {
		tax = *detail.Tax
	}

	return core.InvoicePayload{
		Date:     m.invoiceDate(event),
		Customer: m.customer(event, detail),
		Items: []core.InvoiceItem{{
			Description: "Payment " + event.ReferenceID,
			Quantity:    1,
			UnitPrice:   amount,
			Tax:         tax,
		}},
		Total:               amount,
		Origin:              firstNonEmpty(m.origin(), core.DefaultOriginSystem),
		OriginTransactionID: event.ReferenceID,
	}
}

func invoiceAmount(event core.InboundEvent, detail *core.ResolvedDetail) float64 {
	if detail != nil && detail.Amount != nil && *detail.Amount != 0 {
		return *detail.Amount
	}
	if event.Amount != nil {
		return *event.Amount
	}
	return 0
}

func (m *Mapper) invoiceDate(event core.InboundEvent) string {
	if raw := firstNonEmpty(event.TransactionDateTime, event.ServiceDate); raw != "" {
		date, _, _ := strings.Cut(raw, "T")
		return strings.TrimSpace(date)
	}
	now := time.Now().UTC()
	if m != nil && m.Now != nil {
		now = m.Now().UTC()
	}
	return now.Format(dateLayout)
}

func (m *Mapper) customer(event core.InboundEvent, detail *core.ResolvedDetail) core.InvoiceCustomer {
	unknown := core.DefaultUnknownCustomerName
	if m != nil && strings.TrimSpace(m.UnknownCustomer) != "" {
		unknown = strings.TrimSpace(m.UnknownCustomer)
	}
	var guest core.GuestDetail
	var reservation core.ReservationDetail
	if detail != nil {
		guest = detail.Guest
		if detail.Reservation != nil {
			reservation = *detail.Reservation
		}
	}
	return core.InvoiceCustomer{
		Name:  firstNonEmpty(guest.Name, reservation.GuestName, event.GuestName, unknown),
		VAT:   optional(guest.TaxID),
		Email: optional(firstNonEmpty(guest.Email, reservation.Email)),
	}
}

func (m *Mapper) origin() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Origin)
}

// Encode renders an invoice as JSON. Field order follows the struct, so equal
// payloads encode to equal bytes.
func Encode(payload core.InvoicePayload) ([]byte, error) {
	return json.Marshal(payload)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ core.InvoiceMapper = (*Mapper)(nil)
