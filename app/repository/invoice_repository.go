package repository

import (
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) GetByUserID(userID uint, offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("user_id = ?", userID).
		Offset(offset).Limit(limit).
		Order("issued_at DESC").
		Find(&invoices).Error
	return invoices, err
}

// ListUnnumbered returns invoices that never received a number, e.g. after a
// crash between invoice creation and allocation. Feeds the numbering backfill
// run at startup.
func (r *invoiceRepository) ListUnnumbered(limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("number IS NULL").
		Limit(limit).
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}
