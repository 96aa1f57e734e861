package billing

import (
	"context"
	"errors"
	"fmt"

	"vintagemart/models"

	"gorm.io/gorm"
)

// InvoiceView adds the date-dependent reads to an invoice.
type InvoiceView struct {
	models.Invoice
	IsOverdue    bool `json:"is_overdue"`
	DaysUntilDue int  `json:"days_until_due"`
}

type SubscriptionView struct {
	models.SellerSubscription
	IsActive         bool `json:"is_active"`
	DaysUntilRenewal *int `json:"days_until_renewal"`
}

type Dashboard struct {
	SellerID           uint                `json:"seller_id"`
	ShopName           string              `json:"shop_name"`
	Status             models.SellerStatus `json:"status"`
	IsSuspended        bool                `json:"is_suspended"`
	Invoices           []InvoiceView       `json:"invoices"`
	ActiveSubscription *SubscriptionView   `json:"active_subscription"`
}

func (s *Service) NewInvoiceView(invoice models.Invoice) InvoiceView {
	today := s.Today()
	return InvoiceView{
		Invoice:      invoice,
		IsOverdue:    invoice.IsOverdue(today),
		DaysUntilDue: invoice.DaysUntilDue(today),
	}
}

func (s *Service) NewSubscriptionView(sub models.SellerSubscription) SubscriptionView {
	return SubscriptionView{
		SellerSubscription: sub,
		IsActive:           sub.IsActive(),
		DaysUntilRenewal:   sub.DaysUntilRenewal(s.Today()),
	}
}

func (s *Service) GetSeller(ctx context.Context, sellerID uint) (*models.Seller, error) {
	var seller models.Seller
	if err := s.db.WithContext(ctx).First(&seller, sellerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to load seller: %w", err)
	}
	return &seller, nil
}

// Dashboard is read-only; overdue risk shows here before any sweep has
// recorded it.
func (s *Service) Dashboard(ctx context.Context, sellerID uint) (*Dashboard, error) {
	seller, err := s.GetSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.ListInvoices(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	active, err := s.ActiveSubscription(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		SellerID:    seller.ID,
		ShopName:    seller.ShopName,
		Status:      seller.Status,
		IsSuspended: seller.IsSuspended(),
		Invoices:    make([]InvoiceView, 0, len(invoices)),
	}
	for _, inv := range invoices {
		d.Invoices = append(d.Invoices, s.NewInvoiceView(inv))
	}
	if active != nil {
		view := s.NewSubscriptionView(*active)
		d.ActiveSubscription = &view
	}
	return d, nil
}
