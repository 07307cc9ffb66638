// api/routes/router.go
package routes

import (
	"context"
	"net/http"
	"time"

	"seatflow/internal/auth"
	"seatflow/internal/delivery"
	"seatflow/internal/holds"
	"seatflow/internal/orders"
	"seatflow/internal/payments"
	"seatflow/internal/promocodes"
	"seatflow/internal/reconciliation"
	"seatflow/internal/seats"
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database"
	"seatflow/internal/shared/database/memstore"
	"seatflow/internal/users"
	"seatflow/pkg/cache"
	"seatflow/pkg/logger"
	"seatflow/pkg/realtime"
	"seatflow/pkg/redislock"

	_ "seatflow/docs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Repositories groups the storage ports so one backend serves every module
type Repositories struct {
	Seats      seats.Repository
	Holds      holds.Store
	Promocodes promocodes.Repository
	Users      users.Repository
	Orders     orders.Repository
}

// NewRepositories returns postgres repositories, or a shared in-memory store
// when the memory driver is configured
func NewRepositories(cfg *config.Config, db *database.DB, clk clock.Clock) *Repositories {
	if cfg.UsesMemoryStore() || db.GetPostgreSQL() == nil {
		store := memstore.New(clk)
		return &Repositories{
			Seats:      store,
			Holds:      store,
			Promocodes: store,
			Users:      store,
			Orders:     store,
		}
	}

	pg := db.GetPostgreSQL()
	return &Repositories{
		Seats:      seats.NewRepository(pg),
		Holds:      holds.NewStore(pg),
		Promocodes: promocodes.NewRepository(pg),
		Users:      users.NewRepository(pg),
		Orders:     orders.NewRepository(pg),
	}
}

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	repos     *Repositories
	clock     clock.Clock
	issuer    *authtoken.Issuer
	cache     cache.Service
	locker    redislock.Locker
	authority payments.Authority
	publisher delivery.Publisher

	seatService           *seats.Service
	holdService           *holds.Service
	promoService          *promocodes.Service
	orderService          *orders.Service
	reconciliationService *reconciliation.Service

	holdJobs  *holds.JobProcessor
	orderJobs *reconciliation.JobProcessor
}

// NewRouter creates a new router instance and builds the service graph
func NewRouter(cfg *config.Config, db *database.DB, repos *Repositories, publisher delivery.Publisher) *Router {
	r := &Router{
		config:    cfg,
		db:        db,
		repos:     repos,
		clock:     clock.System{},
		issuer:    authtoken.NewIssuer(cfg.JWT.Secret),
		authority: payments.NewFromConfig(cfg.Payment),
		publisher: publisher,
	}

	if redisClient := db.GetRedis(); redisClient != nil {
		r.cache = cache.NewService(redisClient)
		lockClient := redislock.New(redisClient)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := lockClient.PreloadScripts(ctx); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to preload lock scripts, loading lazily")
		}
		cancel()
		r.locker = lockClient
	} else {
		r.cache = cache.NewNop()
		r.locker = redislock.NewLocal()
	}

	r.buildServices()
	return r
}

func (r *Router) buildServices() {
	var broadcaster realtime.Broadcaster = realtime.Nop{}
	if r.config.PubNub.Enabled {
		pn := realtime.NewPubNubClient(r.config.PubNub.PublishKey, r.config.PubNub.SubscribeKey, r.config.PubNub.SecretKey, r.config.PubNub.UserID)
		broadcaster = realtime.NewPubNubBroadcaster(pn)
	}

	r.seatService = seats.NewService(r.repos.Seats, r.cache, broadcaster, r.clock, r.config)
	r.holdService = holds.NewService(r.repos.Holds, r.seatService, r.seatService, r.clock, r.config)
	r.promoService = promocodes.NewService(r.repos.Promocodes, r.cache, r.clock)
	r.orderService = orders.NewService(
		r.repos.Orders,
		r.seatService,
		r.seatService,
		r.holdService,
		r.promoService,
		users.NewResolver(r.repos.Users),
		r.authority,
		r.clock,
		r.config,
	)
	r.reconciliationService = reconciliation.NewService(r.repos.Orders, r.authority, r.publisher, r.seatService, r.clock)

	r.holdJobs = holds.NewJobProcessor(r.holdService, r.locker, &holds.JobConfig{
		SweepInterval: r.config.Jobs.HoldSweepInterval,
		BatchSize:     r.config.Jobs.BatchSize,
		LockTTL:       r.config.Jobs.LockTTL,
	})
	r.orderJobs = reconciliation.NewJobProcessor(r.reconciliationService, r.locker, r.config.Jobs)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		r.setupSeatRoutes(api)
		r.setupHoldRoutes(api)
		r.setupPromocodeRoutes(api)
		r.setupOrderRoutes(api)
		r.setupReconciliationRoutes(api)
	}
}

// StartJobs launches the hold sweeper and the order reconciliation jobs
func (r *Router) StartJobs(ctx context.Context) {
	if !r.config.Jobs.Enabled {
		logger.GetDefault().Info("Background jobs disabled")
		return
	}
	r.holdJobs.Start(ctx)
	r.orderJobs.Start(ctx)
}

// StopJobs stops every background job
func (r *Router) StopJobs() {
	if !r.config.Jobs.Enabled {
		return
	}
	r.holdJobs.Stop()
	r.orderJobs.Stop()
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "seatflow",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "seatflow",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		jobs := gin.H{"enabled": r.config.Jobs.Enabled}
		if r.config.Jobs.Enabled {
			jobs["holds"] = r.holdJobs.GetJobStatus()
			jobs["orders"] = r.orderJobs.GetJobStatus()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"store":       r.config.Database.Driver,
			"redis":       r.db.GetRedis() != nil,
			"kafka":       r.config.Kafka.Enabled,
			"jobs":        jobs,
			"timestamp":   time.Now(),
		})
	})

	if r.config.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authService := auth.NewService(r.repos.Users, r.issuer, r.holdService, r.config)
	authController := auth.NewController(authService)

	auth.SetupAuthRoutes(rg, authController, r.issuer)
}

// setupSeatRoutes configures availability and seat map generation routes
func (r *Router) setupSeatRoutes(rg *gin.RouterGroup) {
	seats.SetupSeatRoutes(rg, seats.NewController(r.seatService), r.issuer)
}

// setupHoldRoutes configures the seat hold cart routes
func (r *Router) setupHoldRoutes(rg *gin.RouterGroup) {
	holds.SetupHoldRoutes(rg, holds.NewController(r.holdService, r.issuer), r.issuer)
}

// setupPromocodeRoutes configures promocode validation and admin routes
func (r *Router) setupPromocodeRoutes(rg *gin.RouterGroup) {
	promocodes.SetupPromocodeRoutes(rg, promocodes.NewController(r.promoService), r.issuer)
}

// setupOrderRoutes configures checkout and order history routes
func (r *Router) setupOrderRoutes(rg *gin.RouterGroup) {
	orders.SetupOrderRoutes(rg, orders.NewController(r.orderService), r.issuer)
}

// setupReconciliationRoutes configures payment return, webhook and reconcile routes
func (r *Router) setupReconciliationRoutes(rg *gin.RouterGroup) {
	controller := reconciliation.NewController(r.reconciliationService, r.config.Payment)
	reconciliation.SetupReconciliationRoutes(rg, controller, r.issuer)
}
