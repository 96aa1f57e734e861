package billing

import (
	"context"
	"fmt"

	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SweepResult struct {
	Scanned int `json:"scanned"`
	Marked  int `json:"marked"`
	Failed  int `json:"failed"`
}

// SweepOverdue marks every pending invoice past its due date as overdue,
// one transaction per invoice. A failing invoice is logged and skipped.
// The sweep stops early only when ctx is done.
func (s *Service) SweepOverdue(ctx context.Context) (SweepResult, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.SweepOverdue")
	defer span.End()

	today := s.Today()
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoicePending, today).
		Order("due_date").Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		span.SetError(err.Error())
		return SweepResult{}, fmt.Errorf("failed to list pending invoices: %w", err)
	}

	result := SweepResult{Scanned: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.metrics.SweepCompleted(result.Marked, result.Failed)
			return result, err
		}

		var applied bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			_, applied, err = s.markOverdue(tx, id)
			return err
		})
		switch {
		case err != nil:
			result.Failed++
			s.log.WithError(err).WithField("invoice_id", id).Error("Overdue sweep failed for invoice")
		case applied:
			result.Marked++
		}
	}

	s.metrics.SweepCompleted(result.Marked, result.Failed)
	span.SetAttributes(map[string]interface{}{
		"scanned": result.Scanned,
		"marked":  result.Marked,
		"failed":  result.Failed,
	})
	s.log.WithFields(logrus.Fields{
		"today":   today.Format("2006-01-02"),
		"scanned": result.Scanned,
		"marked":  result.Marked,
		"failed":  result.Failed,
	}).Info("Overdue sweep completed")
	return result, nil
}
