package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mehmetcc/campaign-auth-service/docs"
	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/authentication"
	"github.com/mehmetcc/campaign-auth-service/internal/otp"
	"github.com/mehmetcc/campaign-auth-service/internal/ratelimit"
	"github.com/mehmetcc/campaign-auth-service/internal/response"
	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

// @title           Campaign Authentication API
// @version         1.0
// @description     Token authentication, donor one-time codes and request rate limiting for the campaign app.
// @termsOfService  http://example.com/terms/
//
// @host      localhost:8080
// @BasePath  /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load config
	cfg, err := utils.LoadConfig(".env")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// init logger
	logger, err := utils.NewLogger(cfg.Server.Env)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// init database
	db, err := utils.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to the database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&account.DonorRecord{},
		&account.UserRecord{},
		&authentication.TokenPair{},
		&otp.OtpCode{},
		&ratelimit.RequestRecord{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	if cfg.Server.Env != utils.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	response.RegisterValidators()

	// init Gin router
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}
	router.Use(
		gin.Recovery(),
		utils.RequestID(),
		utils.RequestLogger(logger),
		response.CORS(cfg.Server.AllowedOrigins),
		// per-process burst guard in front of the persistent limiter
		ratelimit.BurstGuard(ratelimit.NewBurstLimiter(cfg.Server.BurstMaxRPS), logger),
		utils.Timeout(cfg.Server.RequestTimeout),
	)

	//
	// SWAGGER (protected by Basic Auth, not bearer tokens)
	//
	swaggerGroup := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
		cfg.Admin.Username: cfg.Admin.Password,
	}))
	swaggerGroup.GET("", ginSwagger.WrapHandler(swaggerFiles.Handler))
	swaggerGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	//
	// WIRE UP SERVICES
	//
	accountService := account.NewAccountService(account.NewAccountRepository(db), logger)

	sender, err := otp.NewSender(cfg.Sms, cfg.Server.Env, logger)
	if err != nil {
		logger.Fatal("failed to configure sms sender", zap.Error(err))
	}
	otpService := otp.NewOtpService(
		otp.NewCodeRepository(db),
		sender,
		cfg.Otp,
		logger,
	)

	authService := authentication.NewAuthenticationService(
		accountService,
		otpService,
		authentication.NewRecordRepository(db),
		logger,
		cfg.Token.AccessTokenTTL,
		cfg.Token.RefreshTokenTTL,
	)

	requestRepo := ratelimit.NewRequestRepository(db)
	limiter := ratelimit.NewLimiter(
		requestRepo,
		ratelimit.DefaultRules(cfg.Server.BasePath),
		logger,
		ratelimit.WithSubject(authentication.Subject),
		ratelimit.WithRetention(cfg.RateLimit.Retention),
		ratelimit.WithCleanupProbability(cfg.RateLimit.CleanupProbability),
	)

	//
	// ROUTES
	//
	api := router.Group(cfg.Server.BasePath, limiter.Recorder())

	// Health godoc
	// @Summary      Health
	// @Description  Liveness probe
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  response.Envelope
	// @Router       /health [get]
	api.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	public := api.Group("", limiter.Middleware())
	protected := api.Group("",
		authentication.RequireAuth(authService, logger),
		limiter.Middleware(),
	)
	admin := protected.Group("", authentication.RequireRole(account.Admin))

	authentication.NewAuthHandler(public, protected, authService, logger)
	authentication.NewAdminHandler(admin, authService, logger)
	otp.NewOtpHandler(public, otpService, accountService, cfg.Otp, logger)
	ratelimit.NewRequestLogHandler(admin, requestRepo, logger)

	//
	// START SERVER
	//
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped gracefully")
	}
}
