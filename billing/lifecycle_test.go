package billing

import (
	"context"
	"testing"
	"time"

	"vintagemart/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSubmitPaymentOnePerInvoice(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	inv := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))

	_, err := f.svc.SubmitPayment(ctx, inv.ID, decimal.RequireFromString("9.99"), "REF-1", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, inv.ID, decimal.RequireFromString("9.99"), "REF-2", "")
	assert.ErrorIs(t, err, ErrPaymentExists)

	_, err = f.svc.SubmitPayment(ctx, 404, decimal.RequireFromString("9.99"), "REF-3", "")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestSubmitPaymentDoesNotChangeInvoice(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	seller := f.seller(t, "shop@vintagemart.test", models.SellerSuspended)
	inv := f.invoice(t, seller.ID, models.InvoiceOverdue, day(2024, 1, 10))

	_, err := f.svc.SubmitPayment(context.Background(), inv.ID, decimal.RequireFromString("9.99"), "REF-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceOverdue, f.invoiceStatus(t, inv.ID))
	assert.Equal(t, models.SellerSuspended, f.sellerStatus(t, seller.ID))
}

func TestVerifyPaymentAcceptsMismatchedAmount(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	admin := f.operator(t)
	inv := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))

	payment, err := f.svc.SubmitPayment(ctx, inv.ID, decimal.RequireFromString("1.00"), "REF-1", "")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, payment.ID, admin.ID, "paid via wire")
	require.NoError(t, err)

	// No amount check ties a payment to its invoice.
	assert.Equal(t, models.InvoiceVerified, f.invoiceStatus(t, inv.ID))
}

func TestVerifyPaymentTwiceOverwrites(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	first := f.operator(t)
	second := models.User{Username: "admin2", Email: "admin2@vintagemart.test", PasswordHash: "hash", IsStaff: true}
	require.NoError(t, f.db.Create(&second).Error)
	inv := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))
	payment, err := f.svc.SubmitPayment(ctx, inv.ID, decimal.RequireFromString("9.99"), "REF-1", "")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, payment.ID, first.ID, "first check")
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(ctx, payment.ID, second.ID, "second check")
	require.NoError(t, err)

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, payment.ID).Error)
	assert.Equal(t, second.ID, *stored.VerifiedByID)
	assert.Equal(t, "second check", stored.Notes)
	assert.Equal(t, models.InvoiceVerified, f.invoiceStatus(t, inv.ID))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PaymentsVerifiedTotal))
}

func TestVerifyMissingPayment(t *testing.T) {
	f := setup(t, day(2024, 1, 15))

	_, err := f.svc.VerifyPayment(context.Background(), 404, 1, "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCancelSubscription(t *testing.T) {
	f := setup(t, day(2024, 2, 20))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	sub := models.SellerSubscription{
		SellerID:    seller.ID,
		PlanType:    "monthly",
		StartDate:   day(2024, 2, 1),
		Status:      models.SubscriptionActive,
		Amount:      decimal.RequireFromString("9.99"),
		RenewalDate: day(2024, 3, 1),
	}
	require.NoError(t, f.db.Create(&sub).Error)

	view := f.svc.NewSubscriptionView(sub)
	assert.True(t, view.IsActive)
	require.NotNil(t, view.DaysUntilRenewal)
	assert.Equal(t, 10, *view.DaysUntilRenewal)

	cancelled, err := f.svc.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, cancelled.Status)

	stored, err := f.svc.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, stored.Status)
	require.NotNil(t, stored.EndDate)
	assert.Equal(t, f.today, models.DateOf(*stored.EndDate))
	assert.False(t, stored.IsActive())

	active, err := f.svc.ActiveSubscription(ctx, seller.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = f.svc.CancelSubscription(ctx, 404)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestCancellingSubscriptionKeepsSellerStatus(t *testing.T) {
	f := setup(t, day(2024, 2, 20))
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	sub := models.SellerSubscription{SellerID: seller.ID, StartDate: day(2024, 2, 1), Status: models.SubscriptionActive, Amount: decimal.RequireFromString("9.99"), RenewalDate: day(2024, 3, 1)}
	require.NoError(t, f.db.Create(&sub).Error)

	_, err := f.svc.CancelSubscription(context.Background(), sub.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SellerActive, f.sellerStatus(t, seller.ID))
}

func TestActiveSubscriptionAllowsSeveral(t *testing.T) {
	f := setup(t, day(2024, 2, 20))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	older := models.SellerSubscription{SellerID: seller.ID, StartDate: day(2024, 1, 1), Status: models.SubscriptionActive, Amount: decimal.RequireFromString("9.99"), RenewalDate: day(2024, 2, 1)}
	require.NoError(t, f.db.Create(&older).Error)
	newer := models.SellerSubscription{SellerID: seller.ID, StartDate: day(2024, 2, 1), Status: models.SubscriptionActive, Amount: decimal.RequireFromString("19.99"), RenewalDate: day(2024, 3, 1)}
	require.NoError(t, f.db.Create(&newer).Error)

	active, err := f.svc.ActiveSubscription(ctx, seller.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.ID)

	all, err := f.svc.ListSubscriptions(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteBillingPlanKeepsInvoices(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	seller := f.seller(t, "shop@vintagemart.test", models.SellerActive)
	plan, err := f.svc.CreateBillingPlan(ctx, "Commission", models.PlanCommission, true, map[string]interface{}{"percentage": 5})
	require.NoError(t, err)

	inv, err := f.svc.CreateInvoice(ctx, InvoiceInput{
		SellerID:      seller.ID,
		Amount:        decimal.RequireFromString("3.50"),
		DueDate:       day(2024, 2, 10),
		BillingPlanID: &plan.ID,
		PeriodStart:   day(2024, 1, 1),
		PeriodEnd:     day(2024, 1, 31),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteBillingPlan(ctx, plan.ID))

	stored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.BillingPlanID)
	assert.Nil(t, stored.BillingPlan)
	assert.Equal(t, "3.50", stored.Amount.StringFixed(2))

	plans, err := f.svc.ListBillingPlans(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, plans)

	assert.ErrorIs(t, f.svc.DeleteBillingPlan(ctx, plan.ID), ErrBillingPlanNotFound)
}

func TestBillingPlans(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()

	_, err := f.svc.CreateBillingPlan(ctx, "Bad", models.PlanType("weekly"), true, nil)
	assert.ErrorIs(t, err, ErrInvalidPlanType)

	hybrid, err := f.svc.CreateBillingPlan(ctx, "Hybrid", models.PlanHybrid, true, map[string]interface{}{"amount": "4.99", "percentage": 3.0})
	require.NoError(t, err)
	legacy, err := f.svc.CreateBillingPlan(ctx, "Legacy", models.PlanPerListing, false, nil)
	require.NoError(t, err)
	assert.False(t, legacy.IsActive)

	var stored models.BillingPlan
	require.NoError(t, f.db.First(&stored, legacy.ID).Error)
	assert.False(t, stored.IsActive)

	active, err := f.svc.ListBillingPlans(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, hybrid.ID, active[0].ID)
	assert.Equal(t, "4.99", active[0].Config["amount"])

	all, err := f.svc.ListBillingPlans(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHandleSellerAccountCreated(t *testing.T) {
	f := setup(t, day(2024, 2, 1))
	ctx := context.Background()
	user := models.User{Username: "jane", Email: "jane.doe@example.com", PasswordHash: "hash", IsSeller: true}
	require.NoError(t, f.db.Create(&user).Error)

	seller, sub, err := f.svc.HandleSellerAccountCreated(ctx, nil, SellerAccountCreated{User: user})
	require.NoError(t, err)

	assert.Equal(t, "jane.doe", seller.ShopName)
	assert.Equal(t, "jane-doe", seller.ShopSlug)
	assert.Equal(t, models.SellerActive, seller.Status)

	require.NotNil(t, sub)
	assert.Equal(t, "monthly", sub.PlanType)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, "9.99", sub.Amount.StringFixed(2))
	assert.Equal(t, day(2024, 2, 1), sub.StartDate)
	assert.Equal(t, day(2024, 3, 2), sub.RenewalDate)
	assert.True(t, sub.IsActive())

	again, none, err := f.svc.HandleSellerAccountCreated(ctx, nil, SellerAccountCreated{User: user})
	require.NoError(t, err)
	assert.Equal(t, seller.ID, again.ID)
	assert.Nil(t, none)
}

func TestProvisioningDisambiguatesSlug(t *testing.T) {
	f := setup(t, day(2024, 2, 1))
	ctx := context.Background()
	first := models.User{Username: "a", Email: "shop@one.test", PasswordHash: "hash", IsSeller: true}
	second := models.User{Username: "b", Email: "shop@two.test", PasswordHash: "hash", IsSeller: true}
	require.NoError(t, f.db.Create(&first).Error)
	require.NoError(t, f.db.Create(&second).Error)

	s1, _, err := f.svc.HandleSellerAccountCreated(ctx, nil, SellerAccountCreated{User: first})
	require.NoError(t, err)
	s2, _, err := f.svc.HandleSellerAccountCreated(ctx, nil, SellerAccountCreated{User: second})
	require.NoError(t, err)

	assert.Equal(t, "shop", s1.ShopSlug)
	assert.Regexp(t, `^shop-[0-9a-f]{8}$`, s2.ShopSlug)
	assert.Equal(t, "shop", s2.ShopName)
}

func TestProvisioningUsesConfiguredDefaults(t *testing.T) {
	f := setup(t, day(2024, 2, 1))
	svc := New(f.db, WithClock(func() time.Time { return day(2024, 2, 1) }), WithSubscriptionDefaults(decimal.RequireFromString("4.50"), 14))
	user := models.User{Username: "c", Email: "c@example.com", PasswordHash: "hash", IsSeller: true}
	require.NoError(t, f.db.Create(&user).Error)

	_, sub, err := svc.HandleSellerAccountCreated(context.Background(), nil, SellerAccountCreated{User: user})
	require.NoError(t, err)
	assert.Equal(t, "4.50", sub.Amount.StringFixed(2))
	assert.Equal(t, day(2024, 2, 15), sub.RenewalDate)
}

func TestSweepOverdue(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	late := f.seller(t, "late@vintagemart.test", models.SellerActive)
	onTime := f.seller(t, "ontime@vintagemart.test", models.SellerActive)

	pastDue := f.invoice(t, late.ID, models.InvoicePending, day(2024, 1, 10))
	dueToday := f.invoice(t, onTime.ID, models.InvoicePending, day(2024, 1, 15))
	paid := f.invoice(t, onTime.ID, models.InvoiceVerified, day(2024, 1, 1))
	cancelled := f.invoice(t, onTime.ID, models.InvoiceCancelled, day(2024, 1, 1))

	result, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Marked: 1}, result)

	assert.Equal(t, models.InvoiceOverdue, f.invoiceStatus(t, pastDue.ID))
	assert.Equal(t, models.InvoicePending, f.invoiceStatus(t, dueToday.ID))
	assert.Equal(t, models.InvoiceVerified, f.invoiceStatus(t, paid.ID))
	assert.Equal(t, models.InvoiceCancelled, f.invoiceStatus(t, cancelled.ID))
	assert.Equal(t, models.SellerSuspended, f.sellerStatus(t, late.ID))
	assert.Equal(t, models.SellerActive, f.sellerStatus(t, onTime.ID))

	again, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, again)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SweepRunsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepMarkedTotal))
}

func TestSweepCountsOnlyItsOwnTransitions(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	seller := f.seller(t, "late@vintagemart.test", models.SellerActive)
	inv := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))

	// Another writer marks the invoice overdue after the sweep listed it
	// but before its transaction reads the row.
	invoiceQueries := 0
	err := f.db.Callback().Query().Before("gorm:query").Register("test:concurrent_overdue", func(db *gorm.DB) {
		if db.Statement.Table != "invoices" {
			return
		}
		invoiceQueries++
		if invoiceQueries == 2 {
			_, err := db.Statement.ConnPool.ExecContext(db.Statement.Context,
				"UPDATE invoices SET status = ? WHERE id = ?", models.InvoiceOverdue, inv.ID)
			require.NoError(t, err)
		}
	})
	require.NoError(t, err)

	result, err := f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Scanned: 1}, result)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.SweepMarkedTotal))
	assert.Equal(t, models.InvoiceOverdue, f.invoiceStatus(t, inv.ID))
	assert.Equal(t, models.SellerActive, f.sellerStatus(t, seller.ID))
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	seller := f.seller(t, "late@vintagemart.test", models.SellerActive)
	inv := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SweepOverdue(ctx)
	assert.Error(t, err)
	assert.Equal(t, models.InvoicePending, f.invoiceStatus(t, inv.ID))
}

func TestDashboard(t *testing.T) {
	f := setup(t, day(2024, 1, 15))
	ctx := context.Background()
	user := models.User{Username: "d", Email: "dash@example.com", PasswordHash: "hash", IsSeller: true}
	require.NoError(t, f.db.Create(&user).Error)
	seller, _, err := f.svc.HandleSellerAccountCreated(ctx, nil, SellerAccountCreated{User: user})
	require.NoError(t, err)

	late := f.invoice(t, seller.ID, models.InvoicePending, day(2024, 1, 10))
	f.invoice(t, seller.ID, models.InvoiceVerified, day(2024, 1, 10))

	d, err := f.svc.Dashboard(ctx, seller.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SellerActive, d.Status)
	assert.False(t, d.IsSuspended)
	require.Len(t, d.Invoices, 2)
	for _, v := range d.Invoices {
		assert.Equal(t, -5, v.DaysUntilDue)
		assert.Equal(t, v.ID == late.ID, v.IsOverdue)
	}
	// Overdue risk is read-only: the stored status is still pending.
	assert.Equal(t, models.InvoicePending, f.invoiceStatus(t, late.ID))

	require.NotNil(t, d.ActiveSubscription)
	assert.True(t, d.ActiveSubscription.IsActive)
	require.NotNil(t, d.ActiveSubscription.DaysUntilRenewal)
	assert.Equal(t, 30, *d.ActiveSubscription.DaysUntilRenewal)

	_, err = f.svc.Dashboard(ctx, 404)
	assert.ErrorIs(t, err, ErrSellerNotFound)
}
