package billing

import (
	"context"
	"errors"
	"fmt"

	"vintagemart/models"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateBillingPlan stores a plan. Config is kept as given; its shape is
// checked by whatever builds invoices from the plan.
func (s *Service) CreateBillingPlan(ctx context.Context, name string, planType models.PlanType, isActive bool, config map[string]interface{}) (*models.BillingPlan, error) {
	if !planType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlanType, planType)
	}
	if config == nil {
		config = map[string]interface{}{}
	}

	plan := models.BillingPlan{
		Name:     name,
		PlanType: planType,
		IsActive: isActive,
		Config:   datatypes.JSONMap(config),
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to create billing plan: %w", err)
	}
	s.log.WithFields(logrus.Fields{"plan_id": plan.ID, "plan_type": plan.PlanType}).Info("Billing plan created")
	return &plan, nil
}

func (s *Service) ListBillingPlans(ctx context.Context, activeOnly bool) ([]models.BillingPlan, error) {
	q := s.db.WithContext(ctx).Order("id")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var plans []models.BillingPlan
	if err := q.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list billing plans: %w", err)
	}
	return plans, nil
}

// DeleteBillingPlan removes a plan and clears it from every invoice that
// referenced it. The invoices themselves are kept.
func (s *Service) DeleteBillingPlan(ctx context.Context, planID uint) error {
	var detached int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.BillingPlan{}, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBillingPlanNotFound
			}
			return fmt.Errorf("failed to load billing plan: %w", err)
		}

		res := tx.Model(&models.Invoice{}).Where("billing_plan_id = ?", planID).Update("billing_plan_id", nil)
		if res.Error != nil {
			return fmt.Errorf("failed to detach invoices: %w", res.Error)
		}
		detached = res.RowsAffected

		if err := tx.Delete(&models.BillingPlan{}, planID).Error; err != nil {
			return fmt.Errorf("failed to delete billing plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"plan_id": planID, "invoices_detached": detached}).Info("Billing plan deleted")
	return nil
}
