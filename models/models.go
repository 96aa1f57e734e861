package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username      string  `gorm:"unique;not null"`
	Email         string  `gorm:"unique;not null"`
	PasswordHash  string  `gorm:"not null" json:"-"`
	IsSeller      bool    `gorm:"default:false"`
	IsStaff       bool    `gorm:"default:false"`
	SellerProfile *Seller `json:",omitempty"`
}

type SellerStatus string

const (
	SellerActive    SellerStatus = "active"
	SellerSuspended SellerStatus = "suspended"
	SellerBanned    SellerStatus = "banned"
)

// Seller is the shop owned by a User. Status decides whether the shop's
// products are visible on the marketplace.
type Seller struct {
	gorm.Model
	UserID            uint   `gorm:"uniqueIndex;not null"`
	ShopName          string `gorm:"size:255;not null"`
	ShopSlug          string `gorm:"uniqueIndex;size:255;not null"`
	ShopDescription   string
	Location          string               `gorm:"size:255"`
	Status            SellerStatus         `gorm:"size:20;not null;default:'active'"`
	IsVerified        bool                 `gorm:"default:false"`
	BankAccountHolder string               `gorm:"size:255"`
	BankName          string               `gorm:"size:255"`
	BankAccountNumber string               `gorm:"size:50" json:"-"`
	Invoices          []Invoice            `gorm:"constraint:OnDelete:CASCADE" json:",omitempty"`
	Subscriptions     []SellerSubscription `gorm:"constraint:OnDelete:CASCADE" json:",omitempty"`
}

func (s *Seller) IsSuspended() bool {
	return s.Status == SellerSuspended
}

// Suspend and Activate are plain setters. Callers decide when they apply.
func (s *Seller) Suspend() {
	s.Status = SellerSuspended
}

func (s *Seller) Activate() {
	s.Status = SellerActive
}

type PlanType string

const (
	PlanSubscription PlanType = "subscription"
	PlanCommission   PlanType = "commission"
	PlanHybrid       PlanType = "hybrid"
	PlanPerListing   PlanType = "per_listing"
	PlanFreemium     PlanType = "freemium"
)

func (p PlanType) Valid() bool {
	switch p {
	case PlanSubscription, PlanCommission, PlanHybrid, PlanPerListing, PlanFreemium:
		return true
	}
	return false
}

// BillingPlan describes how sellers are charged. Config is interpreted
// according to PlanType by whoever builds invoices from the plan.
type BillingPlan struct {
	ID       uint              `gorm:"primarykey"`
	Name     string            `gorm:"size:255;not null"`
	PlanType PlanType          `gorm:"size:50;not null"`
	IsActive bool              `gorm:"not null"`
	Config   datatypes.JSONMap `gorm:"not null"`
}

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceVerified  InvoiceStatus = "verified"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID            uint            `gorm:"primarykey"`
	SellerID      uint            `gorm:"not null;index:idx_invoice_seller_created,priority:1"`
	Seller        Seller          `json:"-"`
	InvoiceNumber string          `gorm:"uniqueIndex;size:50;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	DueDate       time.Time       `gorm:"type:date;not null"`
	Status        InvoiceStatus   `gorm:"size:20;not null;default:'pending';index:idx_invoice_status_created,priority:1"`
	BillingPlanID *uint
	BillingPlan   *BillingPlan `gorm:"constraint:OnDelete:SET NULL" json:",omitempty"`
	PeriodStart   time.Time    `gorm:"type:date;not null"`
	PeriodEnd     time.Time    `gorm:"type:date;not null"`
	Payment       *Payment     `gorm:"constraint:OnDelete:CASCADE" json:",omitempty"`
	CreatedAt     time.Time    `gorm:"index:idx_invoice_seller_created,priority:2,sort:desc;index:idx_invoice_status_created,priority:2,sort:desc"`
	UpdatedAt     time.Time
}

// IsOverdue reports overdue risk without touching the stored status. Only a
// pending invoice past its due date counts.
func (i *Invoice) IsOverdue(today time.Time) bool {
	return i.Status == InvoicePending && DateOf(today).After(DateOf(i.DueDate))
}

// DaysUntilDue is negative once the due date has passed.
func (i *Invoice) DaysUntilDue(today time.Time) int {
	return DaysBetween(today, i.DueDate)
}

func (i *Invoice) IsVerified() bool {
	return i.Status == InvoiceVerified
}

// MarkVerified always sets the invoice to verified, whatever its previous
// status. A suspended seller is reactivated by any single verified invoice,
// even when other invoices of the same seller are still overdue.
func (i *Invoice) MarkVerified() {
	i.Status = InvoiceVerified
	if i.Seller.IsSuspended() {
		i.Seller.Activate()
	}
}

// MarkOverdue only moves a pending invoice. It reports whether the invoice
// changed. Banned sellers stay banned.
func (i *Invoice) MarkOverdue() bool {
	if i.Status != InvoicePending {
		return false
	}
	i.Status = InvoiceOverdue
	if !i.Seller.IsSuspended() && i.Seller.Status != SellerBanned {
		i.Seller.Suspend()
	}
	return true
}

// Payment is the proof of a bank transfer for one invoice. It counts as paid
// only once an operator has verified it.
type Payment struct {
	ID            uint            `gorm:"primarykey"`
	InvoiceID     uint            `gorm:"uniqueIndex;not null"`
	Invoice       Invoice         `json:"-"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	VerifiedAt    *time.Time
	VerifiedByID  *uint
	VerifiedBy    *User  `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	BankReference string `gorm:"size:100"`
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Payment) IsVerified() bool {
	return p.VerifiedAt != nil
}

// Verify stamps the verifier and cascades to the invoice. Calling it again
// overwrites the previous verifier, time and notes.
func (p *Payment) Verify(verifiedBy uint, notes string, now time.Time) {
	p.VerifiedAt = &now
	p.VerifiedByID = &verifiedBy
	p.Notes = notes
	p.Invoice.MarkVerified()
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type SellerSubscription struct {
	ID          uint               `gorm:"primarykey"`
	SellerID    uint               `gorm:"not null;index"`
	Seller      Seller             `json:"-"`
	PlanType    string             `gorm:"size:50;not null;default:'monthly'"`
	StartDate   time.Time          `gorm:"type:date;not null"`
	EndDate     *time.Time         `gorm:"type:date"`
	Status      SubscriptionStatus `gorm:"size:20;not null;default:'active'"`
	Amount      decimal.Decimal    `gorm:"type:numeric(10,2);not null"`
	RenewalDate time.Time          `gorm:"type:date;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive is true for an active subscription without an end date.
func (s *SellerSubscription) IsActive() bool {
	return s.Status == SubscriptionActive && s.EndDate == nil
}

// DaysUntilRenewal returns nil when no renewal date is set.
func (s *SellerSubscription) DaysUntilRenewal(today time.Time) *int {
	if s.RenewalDate.IsZero() {
		return nil
	}
	days := DaysBetween(today, s.RenewalDate)
	return &days
}

func (s *SellerSubscription) Cancel(today time.Time) {
	end := DateOf(today)
	s.Status = SubscriptionCancelled
	s.EndDate = &end
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
