package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/garagembr/garagem-api/middleware"
	"github.com/garagembr/garagem-api/models"
	"github.com/garagembr/garagem-api/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateVehicleRequest represents the request body for registering a vehicle
type CreateVehicleRequest struct {
	Plate     string `json:"plate" binding:"omitempty"`
	Brand     string `json:"brand" binding:"required"`
	Model     string `json:"model" binding:"required"`
	ModelYear int    `json:"model_year" binding:"omitempty"`
	FipeCode  string `json:"fipe_code" binding:"omitempty"`
}

// VehicleController handles the caller's garage
type VehicleController struct {
	db       *gorm.DB
	upserter *services.UserUpserter
}

// NewVehicleController creates a vehicle controller with its dependencies
func NewVehicleController(db *gorm.DB, upserter *services.UserUpserter) *VehicleController {
	return &VehicleController{db: db, upserter: upserter}
}

// currentUser resolves the authenticated subject to a users row. Vehicles
// always hang off the row's primary id, which may differ from the subject id
// for merged legacy accounts.
func (vc *VehicleController) currentUser(c *gin.Context) (*models.NormalizedUser, bool) {
	subjectID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, false
	}

	user, err := vc.upserter.Get(c.Request.Context(), subjectID)
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found. Sign in first.",
				},
			})
			return nil, false
		}
		log.Printf("resolve user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to resolve user",
			},
		})
		return nil, false
	}

	return user, true
}

// ListVehicles handles GET /api/v1/vehicles - lists the caller's vehicles
func (vc *VehicleController) ListVehicles(c *gin.Context) {
	user, ok := vc.currentUser(c)
	if !ok {
		return
	}

	var vehicles []models.Vehicle
	if err := vc.db.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		log.Printf("list vehicles: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to list vehicles",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    vehicles,
	})
}

// CreateVehicle handles POST /api/v1/vehicles - registers a vehicle for the caller
func (vc *VehicleController) CreateVehicle(c *gin.Context) {
	user, ok := vc.currentUser(c)
	if !ok {
		return
	}

	var req CreateVehicleRequest
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

	vehicle := models.Vehicle{
		UserID:    user.ID,
		Plate:     req.Plate,
		Brand:     req.Brand,
		Model:     req.Model,
		ModelYear: req.ModelYear,
		FipeCode:  req.FipeCode,
	}

	if err := vc.db.Create(&vehicle).Error; err != nil {
		log.Printf("create vehicle: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create vehicle",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    vehicle,
	})
}

// DeleteVehicle handles DELETE /api/v1/vehicles/:id - removes one of the caller's vehicles
func (vc *VehicleController) DeleteVehicle(c *gin.Context) {
	user, ok := vc.currentUser(c)
	if !ok {
		return
	}

	vehicleID := c.Param("id")
	var vehicle models.Vehicle
	if err := vc.db.Where("id = ? AND user_id = ?", vehicleID, user.ID).First(&vehicle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VEHICLE_NOT_FOUND",
					"message": "Vehicle not found",
				},
			})
			return
		}
		log.Printf("delete vehicle: lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete vehicle",
			},
		})
		return
	}

	if err := vc.db.Delete(&vehicle).Error; err != nil {
		log.Printf("delete vehicle: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete vehicle",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"deleted": vehicle.ID},
	})
}
