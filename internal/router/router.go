package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	authHandler "github.com/pharmapointe/ordonnance-api/internal/handler/auth"
	healthHandler "github.com/pharmapointe/ordonnance-api/internal/handler/health"
	messageHandler "github.com/pharmapointe/ordonnance-api/internal/handler/message"
	noteHandler "github.com/pharmapointe/ordonnance-api/internal/handler/note"
	prescriptionHandler "github.com/pharmapointe/ordonnance-api/internal/handler/prescription"
	"github.com/pharmapointe/ordonnance-api/internal/middleware"
)

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	CORS      middleware.CORSConfig
	Cache     middleware.CacheConfig
}

func DefaultConfig() Config {
	return Config{
		RateLimit: 50,
		RateBurst: 100,
		CORS:      middleware.DefaultCORSConfig(),
		Cache:     middleware.DefaultCacheConfig(),
	}
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	cache  middleware.CacheConfig

	healthH       *healthHandler.Handler
	authH         *authHandler.Handler
	prescriptionH *prescriptionHandler.Handler
	messageH      *messageHandler.Handler
	noteH         *noteHandler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *healthHandler.Handler,
	authH *authHandler.Handler,
	prescriptionH *prescriptionHandler.Handler,
	messageH *messageHandler.Handler,
	noteH *noteHandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()
	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.CORS(config.CORS),
	)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(limiter.RateLimit())

	return &Router{
		engine:        engine,
		auth:          auth,
		cache:         config.Cache,
		healthH:       healthH,
		authH:         authH,
		prescriptionH: prescriptionH,
		messageH:      messageH,
		noteH:         noteH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate(), middleware.Cache(r.cache))
	r.authH.RegisterProtectedRoutes(protected)
	r.prescriptionH.RegisterRoutes(protected)
	r.messageH.RegisterRoutes(protected)
	r.noteH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
