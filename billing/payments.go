package billing

import (
	"context"
	"errors"
	"fmt"

	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubmitPayment records proof of a bank transfer. The amount is stored as
// given; it is not compared with the invoice amount.
func (s *Service) SubmitPayment(ctx context.Context, invoiceID uint, amount decimal.Decimal, bankReference, notes string) (*models.Payment, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.SubmitPayment")
	defer span.End()
	span.SetAttributes(map[string]interface{}{"invoice_id": invoiceID})

	payment := models.Payment{
		InvoiceID:     invoiceID,
		Amount:        amount.Round(2),
		BankReference: bankReference,
		Notes:         notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Invoice{}, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", invoiceID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check for existing payment: %w", err)
		}
		if existing > 0 {
			return ErrPaymentExists
		}

		if err := tx.Omit("Invoice", "VerifiedBy").Create(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPaymentExists
			}
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"invoice_id": invoiceID,
		"amount":     payment.Amount.StringFixed(2),
	}).Info("Payment submitted")
	return &payment, nil
}

// VerifyPayment stamps the operator on the payment and marks its invoice
// verified, reactivating a suspended seller. Verifying an already verified
// payment overwrites the earlier verifier, time and notes.
func (s *Service) VerifyPayment(ctx context.Context, paymentID, operatorID uint, notes string) (*models.Payment, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.VerifyPayment")
	defer span.End()
	span.SetAttributes(map[string]interface{}{"payment_id": paymentID, "operator_id": operatorID})

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Invoice").Preload("Invoice.Seller").First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}

		before := payment.Invoice.Seller.Status
		from := payment.Invoice.Status
		payment.Verify(operatorID, notes, s.now())

		err := tx.Model(&payment).Updates(map[string]interface{}{
			"verified_at":    *payment.VerifiedAt,
			"verified_by_id": *payment.VerifiedByID,
			"notes":          payment.Notes,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		return s.persistVerified(tx, &payment.Invoice, before, from)
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}

	s.metrics.PaymentVerified()
	s.log.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"invoice_id":  payment.InvoiceID,
		"operator_id": operatorID,
	}).Info("Payment verified")
	return &payment, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Invoice").First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &payment, nil
}
