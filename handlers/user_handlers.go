package handlers

import (
	"errors"
	"net/http"

	"vintagemart/billing"
	"vintagemart/database"
	"vintagemart/models"
	"vintagemart/tracing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	IsSeller bool   `json:"is_seller"`
}

var errUsernameTaken = errors.New("username already exists")
var errEmailTaken = errors.New("email address already in use")

// CreateUser registers an account. Seller accounts get their default shop
// and first subscription in the same transaction.
func CreateUser(c *gin.Context) {
	ctx, span := tracing.StartSpan(c.Request.Context(), "CreateUser")
	defer span.End()
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(map[string]interface{}{"username": req.Username, "email": req.Email, "is_seller": req.IsSeller})

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.SetError(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		IsSeller:     req.IsSeller,
	}

	var seller *models.Seller
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingUser models.User
		if err := tx.Where("username = ?", req.Username).First(&existingUser).Error; err == nil {
			return errUsernameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var existingEmailUser models.User
		if err := tx.Where("email = ?", req.Email).First(&existingEmailUser).Error; err == nil {
			return errEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Omit("SellerProfile").Create(&user).Error; err != nil {
			return err
		}

		if user.IsSeller {
			var err error
			seller, _, err = billingService().HandleSellerAccountCreated(ctx, tx, billing.SellerAccountCreated{User: user})
			return err
		}
		return nil
	})
	if err != nil {
		span.SetError(err.Error())
		switch {
		case errors.Is(err, errUsernameTaken), errors.Is(err, errEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			Logger.WithError(err).Error("Failed to create user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		}
		return
	}

	resp := gin.H{"message": "User created successfully", "user_id": user.ID}
	if seller != nil {
		resp["seller_id"] = seller.ID
		resp["shop_slug"] = seller.ShopSlug
	}
	c.JSON(http.StatusCreated, resp)
}
