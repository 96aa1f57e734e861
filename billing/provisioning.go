package billing

import (
	"context"
	"fmt"
	"strings"

	"vintagemart/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SellerAccountCreated is emitted once a user flagged as seller exists.
type SellerAccountCreated struct {
	User models.User
}

// HandleSellerAccountCreated builds the default shop and its first monthly
// subscription for a new seller account. It runs on tx so that the user,
// the shop and the subscription commit together; a nil tx uses the
// service's own connection.
func (s *Service) HandleSellerAccountCreated(ctx context.Context, tx *gorm.DB, evt SellerAccountCreated) (*models.Seller, *models.SellerSubscription, error) {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	var existing models.Seller
	res := tx.Where("user_id = ?", evt.User.ID).Limit(1).Find(&existing)
	if res.Error != nil {
		return nil, nil, fmt.Errorf("failed to check for existing seller: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &existing, nil, nil
	}

	name := strings.Split(evt.User.Email, "@")[0]
	slug, err := uniqueSlug(tx, strings.ReplaceAll(name, ".", "-"))
	if err != nil {
		return nil, nil, err
	}

	seller := models.Seller{
		UserID:   evt.User.ID,
		ShopName: name,
		ShopSlug: slug,
		Status:   models.SellerActive,
	}
	if err := tx.Omit("Invoices", "Subscriptions").Create(&seller).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create seller: %w", err)
	}

	today := s.Today()
	sub := models.SellerSubscription{
		SellerID:    seller.ID,
		PlanType:    "monthly",
		StartDate:   today,
		Status:      models.SubscriptionActive,
		Amount:      s.subscriptionAmount,
		RenewalDate: today.AddDate(0, 0, s.renewalDays),
	}
	if err := tx.Omit("Seller").Create(&sub).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create initial subscription: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   evt.User.ID,
		"seller_id": seller.ID,
		"shop_slug": seller.ShopSlug,
	}).Info("Seller provisioned")
	return &seller, &sub, nil
}

func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	slug := base
	for i := 0; i < 5; i++ {
		var n int64
		if err := tx.Model(&models.Seller{}).Unscoped().Where("shop_slug = ?", slug).Count(&n).Error; err != nil {
			return "", fmt.Errorf("failed to check shop slug: %w", err)
		}
		if n == 0 {
			return slug, nil
		}
		slug = base + "-" + strings.ToLower(shortID())
	}
	return "", fmt.Errorf("could not find a free shop slug for %q", base)
}
