package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/garagembr/garagem-api/middleware"
	"github.com/garagembr/garagem-api/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory database with the canonical schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Failed to open test database")

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Vehicle{}, &models.Guide{}))
	return db
}

// withIdentity is a stand-in for the token middleware: it seeds the context
// the way EnsureValidToken does after a successful validation.
func withIdentity(subjectID string, claims *middleware.CustomClaims, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", subjectID)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: subjectID},
			CustomClaims:     claims,
		})
		c.Set("access_token", accessToken)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response must be valid JSON")
	return response
}

func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "Response must carry an error object")
	code, _ := errObj["code"].(string)
	return code
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
