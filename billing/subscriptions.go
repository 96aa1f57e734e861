package billing

import (
	"context"
	"errors"
	"fmt"

	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CancelSubscription ends a subscription today. Cancelling twice moves the
// end date to the later day; nothing else changes.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID uint) (*models.SellerSubscription, error) {
	ctx, span := tracing.StartSpan(ctx, "billing.CancelSubscription")
	defer span.End()
	span.SetAttributes(map[string]interface{}{"subscription_id": subscriptionID})

	var sub models.SellerSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, subscriptionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriptionNotFound
			}
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		sub.Cancel(s.Today())
		err := tx.Model(&sub).Updates(map[string]interface{}{
			"status":   sub.Status,
			"end_date": *sub.EndDate,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err.Error())
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"seller_id":       sub.SellerID,
	}).Info("Subscription cancelled")
	return &sub, nil
}

func (s *Service) GetSubscription(ctx context.Context, subscriptionID uint) (*models.SellerSubscription, error) {
	var sub models.SellerSubscription
	if err := s.db.WithContext(ctx).First(&sub, subscriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// ActiveSubscription returns the newest subscription with status active, or
// nil. Several rows may be active at once; only the newest is returned.
func (s *Service) ActiveSubscription(ctx context.Context, sellerID uint) (*models.SellerSubscription, error) {
	var sub models.SellerSubscription
	err := s.db.WithContext(ctx).
		Where("seller_id = ? AND status = ?", sellerID, models.SubscriptionActive).
		Order("created_at desc").Order("id desc").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, sellerID uint) ([]models.SellerSubscription, error) {
	var subs []models.SellerSubscription
	err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at desc").Order("id desc").Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
