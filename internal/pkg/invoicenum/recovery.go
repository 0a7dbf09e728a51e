package invoicenum

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/LukasWeidner/TalentFox/app/models"
)

// UnnumberedSource lists invoices that were committed without a number.
type UnnumberedSource interface {
	ListUnnumbered(limit int) ([]models.Invoice, error)
}

// Backfill assigns numbers to invoices left unnumbered by a crash between
// invoice creation and allocation. Failures on individual invoices are logged
// and skipped so one poisoned row cannot stall the rest. Returns how many
// invoices received a number.
func (a *Allocator) Backfill(ctx context.Context, src UnnumberedSource, limit int) (int, error) {
	rows, err := src.ListUnnumbered(limit)
	if err != nil {
		return 0, err
	}

	numbered := 0
	for _, inv := range rows {
		number, err := a.Allocate(ctx, inv.ID, inv.IssuedAt, false)
		if err != nil {
			log.Errorf("[InvoiceNum] backfill of invoice %d failed: %v", inv.ID, err)
			continue
		}
		log.Infof("[InvoiceNum] backfilled number %s for invoice %d", number, inv.ID)
		numbered++
	}
	return numbered, nil
}
