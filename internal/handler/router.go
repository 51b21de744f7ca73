package handler

import (
	"time"

	"diamondshop/internal/config"
	"diamondshop/internal/infrastructure/cache"
	"diamondshop/internal/infrastructure/lock"
	"diamondshop/internal/processor"
	"diamondshop/internal/repository"
	"diamondshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 组装依赖并配置路由
// 支付模拟器/锁工厂都走依赖注入，不用进程级单例，测试可替换
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 仓储
	userRepo := repository.NewUserRepository(db)
	pkgRepo := repository.NewPackageRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	logRepo := repository.NewBalanceLogRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// 基础设施
	sessions := cache.NewSessionStore(rdb, time.Duration(cfg.Business.SessionTTLHours)*time.Hour)
	settleLocks := func(userID int64, ownerToken string) lock.Handle {
		return lock.NewSettleLock(rdb, userID, ownerToken)
	}
	methodLocks := func(userID int64, ownerToken string) lock.Handle {
		return lock.NewDefaultCardLock(rdb, userID, ownerToken)
	}

	// 领域组件
	validator := processor.NewCardValidator(cfg.Business.EnforceLuhn)
	simulator := processor.NewSimulator(cfg.Business.DeclineRate, nil)

	// 服务
	userService := service.NewUserService(userRepo, sessions)
	catalog := service.NewCatalogService(pkgRepo)
	methodService := service.NewPaymentMethodService(db, methodRepo, userRepo, validator, methodLocks)
	settlement := service.NewSettlementService(db, orderRepo, userRepo, pkgRepo, methodRepo, logRepo, outboxRepo, simulator, settleLocks, cfg)
	report := service.NewReportService(userRepo, orderRepo, methodRepo, pkgRepo)

	h := NewHandler(userService, catalog, methodService, settlement, report, cfg.Business.OrderPageSize)

	api := r.Group("/api/v1")
	{
		// 注册/登录
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", AuthMiddleware(userService), h.Logout)
		}

		// 套餐目录（公开）
		api.GET("/packages", h.ListPackages)
		api.GET("/packages/:id", h.GetPackage)

		// 登录态接口
		authed := api.Group("", AuthMiddleware(userService))
		{
			account := authed.Group("/account")
			{
				account.GET("/balance", h.GetBalance)
				account.POST("/rotate-key", h.RotateKey)
			}

			methods := authed.Group("/payment-methods")
			{
				methods.GET("", h.ListPaymentMethods)
				methods.POST("", h.AddPaymentMethod)
				methods.POST("/:id/default", h.SetDefaultPaymentMethod)
				methods.DELETE("/:id", h.DeletePaymentMethod)
			}

			orders := authed.Group("/orders")
			{
				orders.POST("", h.CreateOrder)
				orders.GET("", h.ListOrders)
			}
		}

		// 管理端
		admin := api.Group("/admin", AuthMiddleware(userService), AdminRequired())
		{
			admin.GET("/stats", h.AdminSystemStats)
			admin.GET("/payment-data", h.AdminPaymentData)
			admin.GET("/export", h.AdminExportData)
			admin.GET("/duplicate-cards", h.AdminDuplicateCards)
			admin.GET("/payment-methods/:id/decrypt", h.AdminDecryptPaymentMethod)
			admin.GET("/users/analytics", h.AdminAllUsersAnalytics)
			admin.GET("/users/:id/analytics", h.AdminUserAnalytics)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
