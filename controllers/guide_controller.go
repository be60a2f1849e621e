package controllers

import (
	"log"
	"net/http"

	"github.com/garagembr/garagem-api/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GuideController serves the public guide listing
type GuideController struct {
	db *gorm.DB
}

// NewGuideController creates a guide controller
func NewGuideController(db *gorm.DB) *GuideController {
	return &GuideController{db: db}
}

// ListGuides handles GET /api/v1/guides - lists published guides
func (gc *GuideController) ListGuides(c *gin.Context) {
	var guides []models.Guide
	if err := gc.db.Where("published = ?", true).Order("created_at DESC").Find(&guides).Error; err != nil {
		log.Printf("list guides: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to list guides",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    guides,
	})
}
