package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"vintagemart/billing"
	"vintagemart/database"
	"vintagemart/metrics"
	"vintagemart/tracing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// Clock is the time source for every billing operation run by a handler.
	Clock   = time.Now
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger = logrus.StandardLogger()

	SubscriptionAmount = decimal.RequireFromString("9.99")
	RenewalDays        = 30
)

// InitTracerForTests installs the no-op span starter.
func InitTracerForTests() {
	tracing.SetStarter(nil)
}

func billingService() *billing.Service {
	return billing.New(database.DB,
		billing.WithClock(Clock),
		billing.WithLogger(Logger),
		billing.WithMetrics(Metrics),
		billing.WithSubscriptionDefaults(SubscriptionAmount, RenewalDays),
	)
}

func parseID(c *gin.Context, span tracing.Span, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	span.SetAttributes(map[string]interface{}{what + "_id": id})
	return uint(id), true
}

// respondError maps billing errors onto HTTP status codes.
func respondError(c *gin.Context, span tracing.Span, err error) {
	span.SetError(err.Error())
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, billing.ErrPaymentNotFound),
		errors.Is(err, billing.ErrSellerNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrBillingPlanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrDuplicateInvoiceNumber),
		errors.Is(err, billing.ErrPaymentExists):
		status = http.StatusConflict
	case errors.Is(err, billing.ErrInvalidPlanType),
		errors.Is(err, billing.ErrInvalidPeriod):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		Logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
