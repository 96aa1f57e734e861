// Package billing persists the seller billing lifecycle: invoice
// transitions, payment verification, subscriptions and seller provisioning.
//
// Every operation reads, mutates and writes its rows inside one transaction.
// There is no version check; concurrent writers to the same seller row are
// last-write-wins.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vintagemart/metrics"
	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrSellerNotFound         = errors.New("seller not found")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrBillingPlanNotFound    = errors.New("billing plan not found")
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
	ErrPaymentExists          = errors.New("a payment already exists for this invoice")
	ErrInvalidPlanType        = errors.New("invalid billing plan type")
	ErrInvalidPeriod          = errors.New("period end is before period start")
)

const (
	transitionMarkOverdue  = "mark_overdue"
	transitionMarkVerified = "mark_verified"
)

type Service struct {
	db      *gorm.DB
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	subscriptionAmount decimal.Decimal
	renewalDays        int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSubscriptionDefaults sets the amount and renewal period given to the
// initial subscription of a newly provisioned seller.
func WithSubscriptionDefaults(amount decimal.Decimal, renewalDays int) Option {
	return func(s *Service) {
		s.subscriptionAmount = amount
		s.renewalDays = renewalDays
	}
}

func New(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:                 db,
		now:                time.Now,
		log:                logrus.StandardLogger(),
		subscriptionAmount: decimal.RequireFromString("9.99"),
		renewalDays:        30,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in UTC.
func (s *Service) Today() time.Time {
	return models.DateOf(s.now().UTC())
}

func (s *Service) MarkOverdue(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.MarkOverdue")
	defer span.End()
	span.SetAttributes(map[string]interface{}{"invoice_id": invoiceID})

	var invoice models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, _, err = s.markOverdue(tx, invoiceID)
		return err
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}
	return &invoice, nil
}

// markOverdue reports whether this call moved the invoice; false means it
// was no longer pending when read inside tx.
func (s *Service) markOverdue(tx *gorm.DB, invoiceID uint) (models.Invoice, bool, error) {
	invoice, err := loadInvoice(tx, invoiceID)
	if err != nil {
		return models.Invoice{}, false, err
	}

	before := invoice.Seller.Status
	from := invoice.Status
	applied := invoice.MarkOverdue()
	s.metrics.InvoiceTransition(transitionMarkOverdue, applied)

	entry := s.log.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"seller_id":  invoice.SellerID,
		"from":       from,
	})
	if !applied {
		entry.Debug("mark_overdue skipped, invoice not pending")
		return invoice, false, nil
	}

	if err := saveInvoiceStatus(tx, &invoice); err != nil {
		return models.Invoice{}, false, err
	}
	if err := s.saveSellerStatus(tx, &invoice.Seller, before); err != nil {
		return models.Invoice{}, false, err
	}
	entry.WithField("seller_status", invoice.Seller.Status).Info("Invoice marked overdue")
	return invoice, true, nil
}

func (s *Service) MarkVerified(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.MarkVerified")
	defer span.End()
	span.SetAttributes(map[string]interface{}{"invoice_id": invoiceID})

	var invoice models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		return s.applyVerified(tx, &invoice)
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}
	return &invoice, nil
}

// applyVerified runs MarkVerified on an invoice with its seller loaded and
// persists both.
func (s *Service) applyVerified(tx *gorm.DB, invoice *models.Invoice) error {
	before, from := invoice.Seller.Status, invoice.Status
	invoice.MarkVerified()
	return s.persistVerified(tx, invoice, before, from)
}

// persistVerified writes an invoice that MarkVerified already moved in memory.
func (s *Service) persistVerified(tx *gorm.DB, invoice *models.Invoice, sellerBefore models.SellerStatus, from models.InvoiceStatus) error {
	s.metrics.InvoiceTransition(transitionMarkVerified, true)
	if err := saveInvoiceStatus(tx, invoice); err != nil {
		return err
	}
	if err := s.saveSellerStatus(tx, &invoice.Seller, sellerBefore); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"invoice_id":    invoice.ID,
		"seller_id":     invoice.SellerID,
		"from":          from,
		"seller_status": invoice.Seller.Status,
	}).Info("Invoice marked verified")
	return nil
}

func (s *Service) saveSellerStatus(tx *gorm.DB, seller *models.Seller, before models.SellerStatus) error {
	if seller.Status == before {
		return nil
	}
	if err := tx.Model(seller).Update("status", seller.Status).Error; err != nil {
		return fmt.Errorf("failed to update seller status: %w", err)
	}
	s.metrics.SellerStatusChanged(string(seller.Status))
	s.log.WithFields(logrus.Fields{
		"seller_id": seller.ID,
		"from":      before,
		"to":        seller.Status,
	}).Info("Seller status changed")
	return nil
}

func saveInvoiceStatus(tx *gorm.DB, invoice *models.Invoice) error {
	if err := tx.Model(invoice).Update("status", invoice.Status).Error; err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return nil
}

func loadInvoice(tx *gorm.DB, invoiceID uint) (models.Invoice, error) {
	var invoice models.Invoice
	if err := tx.Preload("Seller").First(&invoice, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Invoice{}, ErrInvoiceNotFound
		}
		return models.Invoice{}, fmt.Errorf("failed to load invoice: %w", err)
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).Preload("Seller").Preload("Payment").Preload("BillingPlan").First(&invoice, invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return &invoice, nil
}

// InvoiceInput is what a billing-cycle generator supplies for one seller
// and period. An empty InvoiceNumber gets a generated one.
type InvoiceInput struct {
	SellerID      uint
	InvoiceNumber string
	Amount        decimal.Decimal
	DueDate       time.Time
	BillingPlanID *uint
	PeriodStart   time.Time
	PeriodEnd     time.Time
}

func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.CreateInvoice")
	defer span.End()

	if models.DateOf(in.PeriodEnd).Before(models.DateOf(in.PeriodStart)) {
		return nil, ErrInvalidPeriod
	}

	invoice := models.Invoice{
		SellerID:      in.SellerID,
		InvoiceNumber: in.InvoiceNumber,
		Amount:        in.Amount.Round(2),
		DueDate:       models.DateOf(in.DueDate),
		Status:        models.InvoicePending,
		BillingPlanID: in.BillingPlanID,
		PeriodStart:   models.DateOf(in.PeriodStart),
		PeriodEnd:     models.DateOf(in.PeriodEnd),
	}
	if invoice.InvoiceNumber == "" {
		invoice.InvoiceNumber = NewInvoiceNumber(s.now())
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Seller{}, in.SellerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSellerNotFound
			}
			return fmt.Errorf("failed to load seller: %w", err)
		}
		if in.BillingPlanID != nil {
			if err := tx.Select("id").First(&models.BillingPlan{}, *in.BillingPlanID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrBillingPlanNotFound
				}
				return fmt.Errorf("failed to load billing plan: %w", err)
			}
		}
		var existing int64
		if err := tx.Model(&models.Invoice{}).Where("invoice_number = ?", invoice.InvoiceNumber).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check for existing invoice: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateInvoiceNumber
		}
		if err := tx.Omit("Seller", "BillingPlan", "Payment").Create(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateInvoiceNumber
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"seller_id":      invoice.SellerID,
	}).Info("Invoice created")
	return &invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, sellerID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at desc").Order("id desc").Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
