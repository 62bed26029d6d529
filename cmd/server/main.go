package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/cardiolab/heart-xai/internal/cache"
	"github.com/cardiolab/heart-xai/internal/config"
	"github.com/cardiolab/heart-xai/internal/database"
	apperrors "github.com/cardiolab/heart-xai/internal/errors"
	"github.com/cardiolab/heart-xai/internal/model"
	"github.com/cardiolab/heart-xai/internal/monitoring"
	"github.com/cardiolab/heart-xai/internal/predict"
	"github.com/cardiolab/heart-xai/internal/preprocess"
	"github.com/cardiolab/heart-xai/internal/ratelimit"
	"github.com/cardiolab/heart-xai/internal/security"
	"github.com/cardiolab/heart-xai/internal/types"
	"github.com/cardiolab/heart-xai/internal/xai"
)

const serviceVersion = "1.0.0"

// application is the explicitly constructed, immutable context shared by all
// request handlers. Model, scaler, schema and background data are loaded once
// here and never mutated afterwards, so concurrent readers need no locking.
type application struct {
	cfg     config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics

	normalizer *preprocess.Normalizer
	predictor  *predict.Engine
	explainer  *xai.Engine
	caps       model.Capabilities

	respCache *cache.Cache
	repo      *database.Repository

	modelLoaded      bool
	scalerLoaded     bool
	backgroundLoaded bool
}

// newApplication loads all artifacts. A load failure degrades the app to an
// explicit not-ready state instead of aborting: the health endpoint keeps
// responding and model-dependent calls return the model-unavailable envelope.
func newApplication(cfg config.Config) *application {
	app := &application{
		cfg:       cfg,
		logger:    monitoring.NewLogger(),
		metrics:   monitoring.NewMetrics(),
		respCache: cache.NewCache(cfg.CacheTTL),
	}

	scaler, err := preprocess.LoadScaler(cfg.ScalerPath)
	app.logger.StartupLogger("scaler", err == nil, err)
	if err == nil {
		normalizer, nerr := preprocess.NewNormalizer(scaler)
		if nerr != nil {
			app.logger.StartupLogger("schema", false, nerr)
		} else {
			app.normalizer = normalizer
			app.scalerLoaded = true
		}
	}

	m, caps, err := model.Load(cfg.ModelPath)
	app.logger.StartupLogger("model", err == nil, err)
	if err == nil {
		app.predictor = predict.NewEngine(m)
		app.caps = caps
		app.modelLoaded = true
	} else {
		app.predictor = predict.NewEngine(nil)
	}

	if app.scalerLoaded {
		background, err := preprocess.LoadBackground(
			cfg.BackgroundPath, app.normalizer.Schema(), cfg.BackgroundSample, cfg.ExplainSeed)
		app.logger.StartupLogger("background", err == nil, err)
		if err == nil {
			app.backgroundLoaded = true

			if app.modelLoaded {
				// Attribution machinery is built once per model and fails
				// fast here; it is never rebuilt per request.
				explainer, xerr := xai.NewEngine(m, caps, app.normalizer.Schema(),
					background, xai.DefaultConfig(cfg.ExplainSeed))
				app.logger.StartupLogger("explainer", xerr == nil, xerr)
				if xerr == nil {
					app.explainer = explainer
				}
			}
		}
	}

	db, err := database.NewDB(cfg.DataDir)
	app.logger.StartupLogger("audit database", err == nil, err)
	if err == nil {
		app.repo = database.NewRepository(db)
	}

	return app
}

func (app *application) ready() bool {
	return app.modelLoaded && app.scalerLoaded && app.backgroundLoaded
}

func setupRouter(app *application) *gin.Engine {
	r := gin.New()

	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(app.metrics, app.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.metrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.respCache.Stats())
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	if app.cfg.IPLimitPerMin > 0 {
		redisClient := ratelimit.NewRedisClient(app.cfg.RedisAddr)
		limiterConfig := ratelimit.DefaultConfig()
		limiterConfig.IPLimitPerMin = app.cfg.IPLimitPerMin
		limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, app.metrics)
		api.Use(ratelimit.Middleware(limiter, app.metrics))
	}

	api.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if !app.ready() {
			status = "degraded"
		}

		c.JSON(http.StatusOK, types.HealthResponse{
			Status:           status,
			Service:          "Heart Disease XAI API",
			Version:          serviceVersion,
			ModelLoaded:      app.modelLoaded,
			ScalerLoaded:     app.scalerLoaded,
			BackgroundLoaded: app.backgroundLoaded,
		})
	})

	api.POST("/predict", app.handlePredict)
	api.POST("/explain", app.handleExplain)

	api.GET("/model/importance", func(c *gin.Context) {
		if app.explainer == nil {
			appErr := apperrors.NewModelUnavailableError()
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"features":     app.normalizer.Schema(),
			"importances":  app.explainer.GlobalImportance(),
			"method":       app.explainer.Method(),
			"capabilities": app.caps,
		})
	})

	api.GET("/audit/recent", func(c *gin.Context) {
		if app.repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log not available"})
			return
		}

		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil {
				limit = l
			}
		}

		audits, err := app.repo.RecentAudits(c.Request.Context(), limit)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"audits": audits})
	})

	return r
}

func (app *application) handlePredict(c *gin.Context) {
	start := time.Now()

	var record types.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		appErr := apperrors.NewValidationError("invalid patient record", err.Error())
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if !app.scalerLoaded {
		appErr := apperrors.WithMessagePrefix(apperrors.NewModelUnavailableError(), "Prediction error")
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	vector, err := app.normalizer.Normalize(&record)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	result, err := app.predictor.Predict(vector)
	if err != nil {
		appErr := apperrors.WithMessagePrefix(err, "Prediction error")
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	duration := time.Since(start)
	app.metrics.IncrementPrediction()
	app.logger.PredictionLogger(result.Label, result.Probability, result.RiskLevel, duration)
	app.saveAudit("predict", &record, result, duration, false)

	c.JSON(http.StatusOK, types.PredictionResponse{
		Prediction:  result.Label,
		Probability: result.Probability,
		RiskLevel:   result.RiskLevel,
	})
}

func (app *application) handleExplain(c *gin.Context) {
	start := time.Now()

	var record types.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		appErr := apperrors.NewValidationError("invalid patient record", err.Error())
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if !app.scalerLoaded || app.explainer == nil {
		appErr := apperrors.WithMessagePrefix(apperrors.NewModelUnavailableError(), "Explanation error")
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	vector, err := app.normalizer.Normalize(&record)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	// Explanations are deterministic under the fixed seed, so the canonical
	// payload is a sound cache key.
	payload, _ := json.Marshal(&record)
	cacheKey := cache.Key("explain", payload)

	if data, ok := app.respCache.Get(cacheKey); ok {
		var cached types.ExplanationResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			app.metrics.IncrementCacheHit()
			app.metrics.IncrementExplanation()
			duration := time.Since(start)
			app.logger.ExplanationLogger(app.explainer.Method(),
				cached.Prediction, cached.Probability, duration, true)
			app.saveAudit("explain", &record, predict.Result{
				Label:       cached.Prediction,
				Probability: cached.Probability,
				RiskLevel:   predict.RiskLevel(cached.Probability),
			}, duration, true)
			c.JSON(http.StatusOK, cached)
			return
		}
	}
	app.metrics.IncrementCacheMiss()

	result, err := app.predictor.Predict(vector)
	if err != nil {
		appErr := apperrors.WithMessagePrefix(err, "Explanation error")
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	// Attribution is CPU-bound for up to hundreds of milliseconds; bound it.
	ctx, cancel := context.WithTimeout(c.Request.Context(), app.cfg.ExplainTimeout)
	defer cancel()

	explanation, err := app.explainer.Explain(ctx, vector)
	if err != nil {
		appErr := apperrors.WithMessagePrefix(err, "Explanation error")
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	response := xai.Assemble(result, explanation, app.normalizer.Schema())

	if data, err := json.Marshal(response); err == nil {
		app.respCache.Set(cacheKey, data)
	}

	duration := time.Since(start)
	app.metrics.IncrementExplanation()
	app.logger.ExplanationLogger(explanation.Method, result.Label, result.Probability, duration, false)
	app.saveAudit("explain", &record, result, duration, false)

	c.JSON(http.StatusOK, response)
}

// saveAudit records the served response asynchronously so persistence never
// blocks the response path.
func (app *application) saveAudit(endpoint string, record *types.PatientRecord, result predict.Result, duration time.Duration, cacheHit bool) {
	if app.repo == nil {
		return
	}

	payload, _ := json.Marshal(record)
	inputHash := fmt.Sprintf("%x", sha256.Sum256(payload))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		audit := database.PredictionAudit{
			Endpoint:    endpoint,
			InputHash:   inputHash,
			Prediction:  result.Label,
			Probability: result.Probability,
			RiskLevel:   result.RiskLevel,
			DurationMS:  duration.Milliseconds(),
			CacheHit:    cacheHit,
		}
		if err := app.repo.SaveAudit(ctx, audit); err != nil {
			slog.Error("Failed to save audit record", "error", err, "endpoint", endpoint)
		}
	}()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	app := newApplication(cfg)
	if !app.ready() {
		slog.Warn("Service starting in degraded state: artifacts missing",
			"model_loaded", app.modelLoaded,
			"scaler_loaded", app.scalerLoaded,
			"background_loaded", app.backgroundLoaded)
	}

	r := setupRouter(app)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "ready", app.ready())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
