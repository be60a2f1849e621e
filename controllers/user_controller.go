package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/garagembr/garagem-api/middleware"
	"github.com/garagembr/garagem-api/models"
	"github.com/garagembr/garagem-api/services"
	"github.com/garagembr/garagem-api/utils"
	"github.com/gin-gonic/gin"
)

// UpdateUserRequest represents the request body for updating a user profile.
// Both the canonical and legacy phone field names are accepted.
type UpdateUserRequest struct {
	Name    string `json:"name" binding:"omitempty"`
	Phone   string `json:"phone" binding:"omitempty"`
	Celular string `json:"celular" binding:"omitempty"`
}

// UserController handles the profile endpoints
type UserController struct {
	upserter *services.UserUpserter
	s3       services.S3Interface
}

// NewUserController creates a user controller with its dependencies
func NewUserController(upserter *services.UserUpserter, s3 services.S3Interface) *UserController {
	return &UserController{upserter: upserter, s3: s3}
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (uc *UserController) GetMyProfile(c *gin.Context) {
	subjectID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	user, err := uc.upserter.Get(c.Request.Context(), subjectID)
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found. Sign in first.",
				},
			})
			return
		}
		log.Printf("get profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch profile",
			},
		})
		return
	}

	uc.resolveAvatar(user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func (uc *UserController) UpdateMyProfile(c *gin.Context) {
	subjectID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	var name, phone *string
	if req.Name != "" {
		name = &req.Name
	}
	if req.Phone != "" {
		phone = &req.Phone
	} else if req.Celular != "" {
		phone = &req.Celular
	}

	user, err := uc.upserter.UpdateProfile(c.Request.Context(), subjectID, name, phone)
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found",
				},
			})
			return
		}
		log.Printf("update profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update user profile",
			},
		})
		return
	}

	uc.resolveAvatar(user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UploadAvatar handles POST /api/v1/users/me/avatar - uploads a PNG avatar
// to S3 and records its key on the user row
func (uc *UserController) UploadAvatar(c *gin.Context) {
	subjectID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	if uc.s3 == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOADS_DISABLED",
				"message": "Avatar storage is not configured",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "An 'avatar' file field is required",
			},
		})
		return
	}

	if err := utils.ValidateImageFile(fileHeader); err != nil {
		var uploadErr *utils.FileUploadError
		code := "INVALID_FILE"
		if errors.As(err, &uploadErr) {
			code = uploadErr.Code
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	s3Key, err := uc.s3.UploadFile(fileHeader)
	if err != nil {
		log.Printf("upload avatar: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": "Failed to store avatar",
			},
		})
		return
	}

	if err := uc.upserter.SetAvatarKey(c.Request.Context(), subjectID, s3Key); err != nil {
		switch {
		case services.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found",
				},
			})
		case errors.Is(err, services.ErrSchemaMismatch):
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SCHEMA_MISMATCH",
					"message": "User store does not support avatar uploads",
				},
			})
		default:
			log.Printf("upload avatar: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to record avatar",
				},
			})
		}
		return
	}

	photoURL, err := uc.s3.GetPresignedURL(s3Key)
	if err != nil {
		log.Printf("upload avatar: presign failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"avatar_s3_key": s3Key,
			"photoURL":      photoURL,
		},
	})
}

// resolveAvatar swaps the stored photo URL for a presigned one when the user
// uploaded a custom avatar.
func (uc *UserController) resolveAvatar(user *models.NormalizedUser) {
	if uc.s3 == nil || user.AvatarS3Key == "" {
		return
	}
	if url, err := uc.s3.GetPresignedURL(user.AvatarS3Key); err == nil && url != "" {
		user.PhotoURL = url
	}
}
