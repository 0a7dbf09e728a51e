package invoicenum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LukasWeidner/TalentFox/app/models"
)

const (
	// NumberPrefix is the first segment of every invoice number.
	NumberPrefix = "INV"

	// maxAttempts bounds the allocate-increment-write retry cycle. Two
	// concurrent transactions can compute the same counter value through
	// visibility differences; the unique index on invoices.number catches
	// that and the loser re-runs the whole cycle.
	maxAttempts = 6
)

var (
	// ErrInvoiceNotFound is returned when the invoice id does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrAllocationExhausted is returned after maxAttempts collisions. It
	// indicates sustained contention or a schema problem and is logged loudly.
	ErrAllocationExhausted = errors.New("invoice number allocation retries exhausted")
)

// Store runs one allocate-increment-write cycle in a single transaction. A
// gorm.ErrDuplicatedKey result means a concurrent allocator raced ahead and
// the cycle should be retried from scratch.
type Store interface {
	TryAllocate(ctx context.Context, invoiceID uint, day string, force bool) (string, error)
}

// Allocator assigns globally unique, human-readable sequential invoice
// numbers (INV-YYYYMMDD-NNNN) backed by one InvoiceSequence row per UTC day.
type Allocator struct {
	store Store
}

// NewAllocator creates an allocator from an injected store.
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// NewAllocatorFromDB creates an allocator backed by GORM.
func NewAllocatorFromDB(db *gorm.DB) *Allocator {
	return NewAllocator(NewStore(db))
}

// FormatNumber renders the number for a given day key and counter value.
func FormatNumber(day string, counter int) string {
	return fmt.Sprintf("%s-%s-%04d", NumberPrefix, day, counter)
}

// DayKey returns the UTC YYYYMMDD sequence key for an issuance time.
func DayKey(issuedAt time.Time) string {
	return issuedAt.UTC().Format("20060102")
}

// Allocate assigns a number to the invoice and returns it. Repeated calls for
// an invoice that already carries a number return the existing number unless
// force is set.
func (a *Allocator) Allocate(ctx context.Context, invoiceID uint, issuedAt time.Time, force bool) (string, error) {
	day := DayKey(issuedAt)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		number, err := a.store.TryAllocate(ctx, invoiceID, day, force)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		lastErr = err
		log.Warnf("[InvoiceNum] number collision for invoice %d on day %s (attempt %d/%d)", invoiceID, day, attempt, maxAttempts)
	}

	log.Errorf("[InvoiceNum] allocation exhausted for invoice %d on day %s: %v", invoiceID, day, lastErr)
	return "", ErrAllocationExhausted
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates the GORM-backed allocation store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) TryAllocate(ctx context.Context, invoiceID uint, day string, force bool) (string, error) {
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}
		if inv.Number != nil && *inv.Number != "" && !force {
			number = *inv.Number
			return nil
		}

		counter, err := nextCounter(tx, day)
		if err != nil {
			return err
		}

		candidate := FormatNumber(day, counter)
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("number", candidate).Error; err != nil {
			return err
		}
		number = candidate
		return nil
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// nextCounter atomically inserts-or-increments the day's sequence row and
// reads back the issued value. Values for a given day are strictly increasing
// and never reused.
func nextCounter(tx *gorm.DB, day string) (int, error) {
	seq := models.InvoiceSequence{Day: day, Counter: 1}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"counter": gorm.Expr("counter + 1"),
		}),
	}).Create(&seq).Error; err != nil {
		return 0, err
	}

	var stored models.InvoiceSequence
	if err := tx.Where("day = ?", day).First(&stored).Error; err != nil {
		return 0, err
	}
	return stored.Counter, nil
}
