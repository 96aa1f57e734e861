package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vintagemart/database"
	"vintagemart/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	InitTracerForTests()
	gin.SetMode(gin.TestMode)
	Logger = logrus.New()
	logrus.SetLevel(logrus.WarnLevel)
	m.Run()
}

var testToday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), database.Config(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	database.DB = db

	require.NoError(t, database.Migrate(db))
	Clock = func() time.Time { return testToday.Add(10 * time.Hour) }
	return db
}

func setupRouter() *gin.Engine {
	r := gin.New()
	RegisterRoutes(r)
	return r
}

func createStaff(t *testing.T, db *gorm.DB) models.User {
	staff := models.User{Username: "operator", Email: "ops@vintagemart.test", PasswordHash: "hash", IsStaff: true}
	require.NoError(t, db.Create(&staff).Error)
	return staff
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, callerID uint, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	if callerID != 0 {
		path = fmt.Sprintf("%s?caller_user_id=%d", path, callerID)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type createdSeller struct {
	UserID   uint   `json:"user_id"`
	SellerID uint   `json:"seller_id"`
	ShopSlug string `json:"shop_slug"`
}

func registerSeller(t *testing.T, r *gin.Engine, username, email string) createdSeller {
	w := doJSON(t, r, "POST", "/users", 0, CreateUserRequest{
		Username: username,
		Email:    email,
		Password: "password",
		IsSeller: true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out createdSeller
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createInvoice(t *testing.T, r *gin.Engine, staffID, sellerID uint, due string) uint {
	w := doJSON(t, r, "POST", "/admin/invoices", staffID, map[string]interface{}{
		"seller_id":    sellerID,
		"amount":       "9.99",
		"due_date":     due,
		"period_start": "2023-12-10",
		"period_end":   "2024-01-09",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		InvoiceID uint `json:"invoice_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.InvoiceID
}

func sellerStatus(t *testing.T, sellerID uint) models.SellerStatus {
	var s models.Seller
	require.NoError(t, database.DB.First(&s, sellerID).Error)
	return s.Status
}
