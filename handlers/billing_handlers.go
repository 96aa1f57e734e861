package handlers

import (
	"net/http"
	"time"

	"vintagemart/billing"
	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func GetInvoice(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "GetInvoice")
	defer span.End()

	invoiceID, ok := parseID(c, span, "invoice")
	if !ok {
		return
	}

	svc := billingService()
	invoice, err := svc.GetInvoice(ctx, invoiceID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	if !canAccessSeller(c, invoice.SellerID) {
		span.SetError("invoice does not belong to the caller")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized: invoice does not belong to the caller's shop"})
		return
	}

	c.JSON(http.StatusOK, svc.NewInvoiceView(*invoice))
}

type SubmitPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	BankReference string          `json:"bank_reference" binding:"max=100"`
	Notes         string          `json:"notes"`
}

// SubmitPayment records the seller's proof of transfer. It stays unverified
// until an operator checks the bank statement. The amount is not validated.
func SubmitPayment(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "SubmitPayment")
	defer span.End()

	invoiceID, ok := parseID(c, span, "invoice")
	if !ok {
		return
	}

	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := billingService()
	invoice, err := svc.GetInvoice(ctx, invoiceID)
	if err != nil {
		respondError(c, span, err)
		return
	}
	if !canAccessSeller(c, invoice.SellerID) {
		span.SetError("invoice does not belong to the caller")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized: invoice does not belong to the caller's shop"})
		return
	}

	payment, err := svc.SubmitPayment(ctx, invoiceID, req.Amount, req.BankReference, req.Notes)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Payment submitted for verification", "payment_id": payment.ID})
}

type VerifyPaymentRequest struct {
	Notes string `json:"notes"`
}

func VerifyPayment(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "VerifyPayment")
	defer span.End()

	paymentID, ok := parseID(c, span, "payment")
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			span.SetError(err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	operatorID := uint(c.GetUint64("callerUserID"))
	payment, err := billingService().VerifyPayment(ctx, paymentID, operatorID, req.Notes)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Payment verified successfully",
		"payment_id":  payment.ID,
		"invoice_id":  payment.InvoiceID,
		"verified_at": payment.VerifiedAt,
	})
}

type CreateInvoiceRequest struct {
	SellerID      uint            `json:"seller_id" binding:"required"`
	InvoiceNumber string          `json:"invoice_number" binding:"max=50"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       string          `json:"due_date" binding:"required"`
	BillingPlanID *uint           `json:"billing_plan_id"`
	PeriodStart   string          `json:"period_start" binding:"required"`
	PeriodEnd     string          `json:"period_end" binding:"required"`
}

const dateLayout = "2006-01-02"

func CreateInvoice(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "CreateInvoice")
	defer span.End()

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(map[string]interface{}{"seller_id": req.SellerID})

	if req.Amount.IsNegative() {
		span.SetError("negative invoice amount")
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	dates := make([]time.Time, 0, 3)
	for _, raw := range []string{req.DueDate, req.PeriodStart, req.PeriodEnd} {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			span.SetError(err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must use YYYY-MM-DD"})
			return
		}
		dates = append(dates, d)
	}

	invoice, err := billingService().CreateInvoice(ctx, billing.InvoiceInput{
		SellerID:      req.SellerID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		DueDate:       dates[0],
		BillingPlanID: req.BillingPlanID,
		PeriodStart:   dates[1],
		PeriodEnd:     dates[2],
	})
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":        "Invoice created successfully",
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
	})
}

func MarkInvoiceOverdue(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "MarkInvoiceOverdue")
	defer span.End()

	invoiceID, ok := parseID(c, span, "invoice")
	if !ok {
		return
	}

	svc := billingService()
	invoice, err := svc.MarkOverdue(ctx, invoiceID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice":       svc.NewInvoiceView(*invoice),
		"seller_status": invoice.Seller.Status,
	})
}

func MarkInvoiceVerified(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "MarkInvoiceVerified")
	defer span.End()

	invoiceID, ok := parseID(c, span, "invoice")
	if !ok {
		return
	}

	svc := billingService()
	invoice, err := svc.MarkVerified(ctx, invoiceID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice":       svc.NewInvoiceView(*invoice),
		"seller_status": invoice.Seller.Status,
	})
}

func SweepOverdueInvoices(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "SweepOverdueInvoices")
	defer span.End()

	result, err := billingService().SweepOverdue(ctx)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type CreateBillingPlanRequest struct {
	Name     string                 `json:"name" binding:"required,max=255"`
	PlanType string                 `json:"plan_type" binding:"required"`
	IsActive *bool                  `json:"is_active"`
	Config   map[string]interface{} `json:"config"`
}

func CreateBillingPlan(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "CreateBillingPlan")
	defer span.End()

	var req CreateBillingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	plan, err := billingService().CreateBillingPlan(ctx, req.Name, models.PlanType(req.PlanType), isActive, req.Config)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Billing plan created successfully", "plan_id": plan.ID})
}

func ListBillingPlans(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "ListBillingPlans")
	defer span.End()

	plans, err := billingService().ListBillingPlans(ctx, c.Query("active") == "true")
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, plans)
}

func DeleteBillingPlan(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "DeleteBillingPlan")
	defer span.End()

	planID, ok := parseID(c, span, "plan")
	if !ok {
		return
	}

	if err := billingService().DeleteBillingPlan(ctx, planID); err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Billing plan deleted successfully"})
}
