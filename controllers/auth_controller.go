package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/garagembr/garagem-api/middleware"
	"github.com/garagembr/garagem-api/models"
	"github.com/garagembr/garagem-api/services"
	"github.com/gin-gonic/gin"
)

// AuthController handles the verify+upsert flow: the middleware has already
// validated the credential by the time Verify runs.
type AuthController struct {
	upserter *services.UserUpserter
	userinfo *services.UserInfoService
}

// NewAuthController creates an auth controller with its dependencies
func NewAuthController(upserter *services.UserUpserter, userinfo *services.UserInfoService) *AuthController {
	return &AuthController{upserter: upserter, userinfo: userinfo}
}

// Verify handles POST /api/v1/auth/verify - reconciles the verified identity
// into the users table and returns the normalized row
func (ac *AuthController) Verify(c *gin.Context) {
	subjectID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user ID from token",
			},
		})
		return
	}

	profile := services.Profile{}
	if claims := middleware.GetCustomClaims(c); claims != nil {
		profile = services.Profile{
			Email:       claims.Email,
			Name:        claims.Name,
			DisplayName: claims.DisplayName,
			Picture:     claims.Picture,
			PhotoURL:    claims.PhotoURL,
		}
	}

	// Access tokens often carry no profile claims at all; fill the gaps from
	// the authority's /userinfo endpoint before giving up on them.
	if profile.Email == "" || (profile.Name == "" && profile.DisplayName == "") {
		if accessToken, tokenErr := middleware.GetAccessToken(c); tokenErr == nil {
			if info, infoErr := ac.userinfo.GetUserInfo(accessToken); infoErr == nil {
				if profile.Email == "" {
					profile.Email = info.Email
				}
				if profile.Name == "" {
					profile.Name = info.Name
				}
				if profile.Picture == "" {
					profile.Picture = info.Picture
				}
			} else {
				log.Printf("verify: userinfo enrichment failed: %v", infoErr)
			}
		}
	}

	ident := services.NewIdentity(subjectID, profile)

	user, err := ac.upserter.Sync(c.Request.Context(), ident)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"persisted": true,
			"user":      user,
		})
	case errors.Is(err, services.ErrSchemaMismatch):
		log.Printf("verify: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SCHEMA_MISMATCH",
				"message": "User store schema does not match any known layout",
			},
		})
	case errors.Is(err, services.ErrStoreUnavailable):
		// The identity is verified even though the store is down. Serve the
		// token data read-only and say so; never claim persistence happened.
		log.Printf("verify: store unavailable, degrading to token data: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"persisted": false,
			"user":      tokenOnlyUser(ident),
		})
	default:
		log.Printf("verify: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to reconcile user",
			},
		})
	}
}

// tokenOnlyUser builds the degraded response shape from the verified tuple
// alone, mirroring the normalized row's field names.
func tokenOnlyUser(ident services.Identity) *models.NormalizedUser {
	return &models.NormalizedUser{
		ID:       ident.SubjectID,
		Email:    ident.Email,
		Name:     ident.DisplayName,
		Nome:     ident.DisplayName,
		PhotoURL: ident.AvatarURL,
	}
}
