package handlers

import (
	"net/http"

	"vintagemart/tracing"

	"github.com/gin-gonic/gin"
)

func GetSellerDashboard(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "GetSellerDashboard")
	defer span.End()

	sellerID, ok := parseID(c, span, "seller")
	if !ok {
		return
	}
	if !canAccessSeller(c, sellerID) {
		span.SetError("caller does not own this shop")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized: you can only view your own shop"})
		return
	}

	dashboard, err := billingService().Dashboard(ctx, sellerID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

func GetSellerSubscriptions(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "GetSellerSubscriptions")
	defer span.End()

	sellerID, ok := parseID(c, span, "seller")
	if !ok {
		return
	}
	if !canAccessSeller(c, sellerID) {
		span.SetError("caller does not own this shop")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized: you can only view your own subscriptions"})
		return
	}

	svc := billingService()
	subs, err := svc.ListSubscriptions(ctx, sellerID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	views := make([]interface{}, 0, len(subs))
	for _, sub := range subs {
		views = append(views, svc.NewSubscriptionView(sub))
	}
	c.JSON(http.StatusOK, views)
}

func CancelSubscription(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "CancelSubscription")
	defer span.End()

	subscriptionID, ok := parseID(c, span, "subscription")
	if !ok {
		return
	}

	svc := billingService()
	sub, err := svc.GetSubscription(ctx, subscriptionID)
	if err != nil {
		respondError(c, span, err)
		return
	}
	if !canAccessSeller(c, sub.SellerID) {
		span.SetError("caller does not own this subscription")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized: subscription does not belong to the caller's shop"})
		return
	}

	cancelled, err := svc.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, svc.NewSubscriptionView(*cancelled))
}
