package registration

import (
	"fmt"
	"strings"

	"github.com/example/tiketa/internal/models"
)

// Form is a submitted registration.
type Form struct {
	EventID  string                `json:"event_id"`
	TicketID int64                 `json:"ticket_id"`
	Buyer    models.Buyer          `json:"buyer"`
	Holders  []models.TicketHolder `json:"holders"`
}

// FieldError lists the fields that are still empty.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Lengkapi data berikut: %s", strings.Join(e.Fields, ", "))
}

// Validate requires every buyer field and name, email, phone for each holder.
func Validate(f Form) error {
	var missing []string
	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	check("event_id", f.EventID)
	if f.TicketID <= 0 {
		missing = append(missing, "ticket_id")
	}

	check("buyer.name", f.Buyer.Name)
	check("buyer.email", f.Buyer.Email)
	check("buyer.phone", f.Buyer.Phone)
	check("buyer.city", f.Buyer.City)

	if len(f.Holders) == 0 {
		missing = append(missing, "holders")
	}
	for i, h := range f.Holders {
		check(fmt.Sprintf("holders[%d].name", i), h.Name)
		check(fmt.Sprintf("holders[%d].email", i), h.Email)
		check(fmt.Sprintf("holders[%d].phone", i), h.Phone)
	}

	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}

// Totals is the price breakdown of a registration.
type Totals struct {
	UnitPrice int64 `json:"unit_price"`
	Quantity  int   `json:"quantity"`
	Subtotal  int64 `json:"subtotal"`
	AdminFee  int64 `json:"admin_fee"`
	Total     int64 `json:"total"`
}

// ComputeTotals is subtotal = unit price × holders, total = subtotal + admin fee.
func ComputeTotals(unitPrice int64, holders int, adminFee int64) Totals {
	subtotal := unitPrice * int64(holders)
	return Totals{
		UnitPrice: unitPrice,
		Quantity:  holders,
		Subtotal:  subtotal,
		AdminFee:  adminFee,
		Total:     subtotal + adminFee,
	}
}
