package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garagembr/garagem-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersRouter(upserter *services.UserUpserter, s3 services.S3Interface, identity gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	uc := NewUserController(upserter, s3)
	group := router.Group("/api/v1/users")
	group.Use(identity)
	group.GET("/me", uc.GetMyProfile)
	group.PUT("/me", uc.UpdateMyProfile)
	group.POST("/me/avatar", uc.UploadAvatar)
	return router
}

// seedUser runs the verify-time sync so the profile endpoints have a row to
// work with.
func seedUser(t *testing.T, upserter *services.UserUpserter) {
	t.Helper()
	_, err := upserter.Sync(context.Background(), services.NewIdentity("google-123", services.Profile{
		Email:   "ana@example.com",
		Name:    "Ana Souza",
		Picture: "https://cdn.example.com/ana.png",
	}))
	require.NoError(t, err)
}

func TestGetMyProfile(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "GET", "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, true, response["success"])

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "google-123", data["id"])
	assert.Equal(t, "ana@example.com", data["email"])
	assert.Equal(t, "Ana Souza", data["name"])
}

func TestGetMyProfileNotFound(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("nobody", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "GET", "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(t, response))
}

func TestUpdateMyProfile(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "PUT", "/api/v1/users/me", UpdateUserRequest{
		Name:    "Ana S.",
		Celular: "+55 11 91234-5678",
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Ana S.", data["name"])
	assert.Equal(t, "+55 11 91234-5678", data["phone"], "Legacy celular field updates the phone")
	assert.Equal(t, "+55 11 91234-5678", data["celular"])
}

func TestUpdateMyProfileInvalidBody(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("google-123", nil, "tok"))

	req, err := http.NewRequest("PUT", "/api/v1/users/me", strings.NewReader("not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, response))
}

func TestUploadAvatar(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	mockS3 := services.NewMockS3Service()
	router := newUsersRouter(upserter, mockS3, withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/users/me/avatar", "avatar", "me.png", []byte("png-bytes")))

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(t, w)
	data := response["data"].(map[string]interface{})
	s3Key := data["avatar_s3_key"].(string)
	assert.True(t, mockS3.FileExists(s3Key), "Uploaded file must land in storage")
	assert.Contains(t, data["photoURL"], s3Key, "Response carries a presigned URL for the new avatar")

	// The profile now serves the presigned URL instead of the provider picture
	w = httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "GET", "/api/v1/users/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	profile := parseResponse(t, w)["data"].(map[string]interface{})
	assert.Contains(t, profile["photoURL"], s3Key)
}

func TestUploadAvatarRejectsWrongFormat(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/users/me/avatar", "avatar", "me.gif", []byte("gif-bytes")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, "INVALID_FILE_FORMAT", errorCode(t, response))
}

func TestUploadAvatarMissingFile(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, services.NewMockS3Service(), withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/users/me/avatar", "wrong_field", "me.png", []byte("png-bytes")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, "MISSING_FILE", errorCode(t, response))
}

func TestUploadAvatarStorageNotConfigured(t *testing.T) {
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)
	seedUser(t, upserter)
	router := newUsersRouter(upserter, nil, withIdentity("google-123", nil, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/users/me/avatar", "avatar", "me.png", []byte("png-bytes")))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := parseResponse(t, w)
	assert.Equal(t, "UPLOADS_DISABLED", errorCode(t, response))
}

func TestUsersRouterUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	upserter := services.NewUserUpserter(db)

	// No identity middleware at all
	router := gin.New()
	uc := NewUserController(upserter, nil)
	router.GET("/api/v1/users/me", uc.GetMyProfile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "GET", "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// MockS3Service must keep satisfying the interface the controller takes.
var _ services.S3Interface = (*services.MockS3Service)(nil)
