package handlers

import (
	"net/http"
	"strconv"

	"vintagemart/database"
	"vintagemart/models"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerUserID, err := strconv.ParseUint(c.Query("caller_user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid caller user ID"})
			c.Abort()
			return
		}

		var callerUser models.User
		if err := database.DB.Preload("SellerProfile").First(&callerUser, callerUserID).Error; err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized: Caller user not found"})
			c.Abort()
			return
		}

		c.Set("callerUserID", callerUserID)
		c.Set("callerIsStaff", callerUser.IsStaff)
		if callerUser.SellerProfile != nil {
			c.Set("callerSellerID", uint64(callerUser.SellerProfile.ID))
		}

		c.Next()
	}
}

// StaffOnly must run after AuthMiddleware.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("callerIsStaff") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized: staff access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// canAccessSeller is true for staff and for the seller's own user.
func canAccessSeller(c *gin.Context, sellerID uint) bool {
	if c.GetBool("callerIsStaff") {
		return true
	}
	callerSellerID, ok := c.Get("callerSellerID")
	return ok && callerSellerID.(uint64) == uint64(sellerID)
}
