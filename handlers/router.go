package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the public, seller and staff routes on r.
func RegisterRoutes(r *gin.Engine) {
	r.POST("/users", CreateUser)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	authRequired := r.Group("/")
	authRequired.Use(AuthMiddleware())
	{
		authRequired.GET("/sellers/:id/dashboard", GetSellerDashboard)
		authRequired.GET("/sellers/:id/subscriptions", GetSellerSubscriptions)
		authRequired.GET("/invoice/:id", GetInvoice)
		authRequired.POST("/invoice/:id/payment", SubmitPayment)
		authRequired.POST("/subscriptions/:id/cancel", CancelSubscription)
	}

	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(), StaffOnly())
	{
		admin.POST("/billing_plans", CreateBillingPlan)
		admin.GET("/billing_plans", ListBillingPlans)
		admin.DELETE("/billing_plans/:id", DeleteBillingPlan)
		admin.POST("/invoices", CreateInvoice)
		admin.POST("/sweep_overdue", SweepOverdueInvoices)
		admin.POST("/invoices/:id/mark_overdue", MarkInvoiceOverdue)
		admin.POST("/invoices/:id/mark_verified", MarkInvoiceVerified)
		admin.POST("/payments/:id/verify", VerifyPayment)
		admin.POST("/clear_db", ClearDatabase)
	}
}
