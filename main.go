package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/garagembr/garagem-api/config"
	"github.com/garagembr/garagem-api/controllers"
	"github.com/garagembr/garagem-api/middleware"
	"github.com/garagembr/garagem-api/models"
	"github.com/garagembr/garagem-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	mergeUsers := flag.Bool("merge-users", false, "merge duplicate user accounts and exit (offline maintenance; do not run against live traffic)")
	flag.Parse()

	// Basic logging
	log.Println("Starting Garagem API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := config.ConnectDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	if err := ensureSchema(db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	upserter := services.NewUserUpserter(db)
	caps, err := upserter.Caps()
	if err != nil {
		log.Fatalf("Users table has no usable schema: %v", err)
	}
	log.Printf("Detected users schema: display-name=%s phone=%s created=%s updated=%s",
		caps.DisplayNameColumn, caps.PhoneColumn, caps.CreatedAtColumn, caps.UpdatedAtColumn)

	if *mergeUsers {
		runMerge(db, caps)
		return
	}

	var s3Service services.S3Interface
	if cfg.AWSS3Bucket != "" {
		s3Service, err = services.NewS3Service(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3: %v", err)
		}
	} else {
		log.Println("AWS_S3_BUCKET not set, avatar uploads disabled")
	}

	router := newRouter(cfg, db, upserter, s3Service)

	addr := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureSchema creates missing tables. The users table is only created when
// it does not exist at all: production databases predate this service and
// carry legacy column spellings that a blind AutoMigrate would "fix",
// breaking the schema detection the upserter relies on.
func ensureSchema(db *gorm.DB) error {
	if !db.Migrator().HasTable(&models.User{}) {
		if err := db.AutoMigrate(&models.User{}); err != nil {
			return err
		}
		log.Println("Created users table")
	}
	return db.AutoMigrate(&models.Vehicle{}, &models.Guide{})
}

// runMerge executes the duplicate-account merger once and exits. Operator
// responsibility: never run two mergers at once, and pick a low-traffic
// window - the re-parenting steps are not one transaction.
func runMerge(db *gorm.DB, caps services.SchemaCaps) {
	merger := services.NewDuplicateMerger(db, caps)
	report, err := merger.Run(context.Background())
	if err != nil {
		log.Fatalf("Merge run failed: %v", err)
	}
	log.Printf("Merge complete: %+v", *report)
}

// newRouter wires the HTTP surface. Everything the handlers need is passed
// in explicitly; there are no package-level handles.
func newRouter(cfg *config.Config, db *gorm.DB, upserter *services.UserUpserter, s3Service services.S3Interface) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	authController := controllers.NewAuthController(upserter, services.NewUserInfoService(cfg))
	userController := controllers.NewUserController(upserter, s3Service)
	vehicleController := controllers.NewVehicleController(db, upserter)
	guideController := controllers.NewGuideController(db)

	// Served outside the versioned group: the frontend fetches it at boot
	// before anything else is known.
	router.GET("/api/runtime-config", controllers.RuntimeConfig)

	requireToken := middleware.EnsureValidToken(cfg)

	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus(db))

		v1.POST("/auth/verify", requireToken, authController.Verify)

		v1.GET("/users/me", requireToken, userController.GetMyProfile)
		v1.PUT("/users/me", requireToken, userController.UpdateMyProfile)
		v1.POST("/users/me/avatar", requireToken, userController.UploadAvatar)

		v1.GET("/vehicles", requireToken, vehicleController.ListVehicles)
		v1.POST("/vehicles", requireToken, vehicleController.CreateVehicle)
		v1.DELETE("/vehicles/:id", requireToken, vehicleController.DeleteVehicle)

		v1.GET("/guides", guideController.ListGuides)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Garagem API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		// Ping the database to verify connection
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
		})
	}
}
