package router

import (
	"fmt"
	"net/http"
	"time"

	"cogscreen-go/internal/archive"
	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/config"
	"cogscreen-go/internal/handlers"
	"cogscreen-go/internal/results"
	"cogscreen-go/internal/services"
	"cogscreen-go/internal/speech"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Issuer    *auth.Issuer
	Store     results.Store
	Sessions  *services.SessionRegistry
	Speech    *speech.Client
	Archive   archive.Store
	Predictor handlers.Predictor
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}
func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Try again later."})
}

func Setup(log *zap.Logger, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(config.Conf.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   config.Conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.UserTTL / time.Second),
	})
	router.Use(sessions.Sessions("cogscreen_session", store))

	// --- Now that sessions are initialized, other middleware can use them ---
	router.Use(NonceMiddleware())
	router.Use(CSRFProtection())
	router.Use(UserLoaderMiddleware(log, deps.Issuer))

	router.Use(func(c *gin.Context) {
		nonce, _ := c.Get(CspNonceContextKey)
		csp := fmt.Sprintf(
			"default-src 'self'; script-src 'self' 'nonce-%s'; style-src 'self' 'unsafe-inline'; media-src 'self' blob:",
			nonce,
		)
		c.Header("Content-Security-Policy", csp)
		c.Next()
	})

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	// Handlers and routes
	authHandler := handlers.NewAuthHandler(log, deps.Issuer, deps.Store, deps.Sessions)
	tmtHandler := handlers.NewTMTHandler(log, deps.Sessions)
	screeningHandler := handlers.NewScreeningHandler(log, deps.Store, deps.Issuer, deps.Speech, deps.Archive)
	predictionHandler := handlers.NewPredictionHandler(log, deps.Store, deps.Predictor)
	resultsHandler := handlers.NewResultsHandler(log, deps.Store)

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 5,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/me", authHandler.Me)
	router.GET("/api/tmt/variants", tmtHandler.Variants)
	router.POST("/login", limiter, authHandler.Login)
	router.POST("/guest/session", limiter, authHandler.GuestSession)
	router.POST("/logout", authHandler.Logout)

	authorized := router.Group("/")
	authorized.Use(AuthRequired())
	{
		// Endpoints the browser client posts to directly.
		authorized.POST("/trail_making_test_a_result", tmtHandler.Submit("A"))
		authorized.POST("/trail_making_test_b_result", tmtHandler.Submit("B"))
		authorized.POST("/speech_upload_chunk", screeningHandler.UploadChunk)
		authorized.POST("/speech_test_finalize", screeningHandler.Finalize)
		authorized.POST("/predict", predictionHandler.Predict)

		tmtRoutes := authorized.Group("/api/tmt")
		{
			tmtRoutes.GET("/summary", tmtHandler.Summary)
			tmtRoutes.GET("/:variant", tmtHandler.Snapshot)
			tmtRoutes.POST("/:variant/start", tmtHandler.Start)
			tmtRoutes.POST("/:variant/reset", tmtHandler.Reset)
			tmtRoutes.POST("/:variant/events", tmtHandler.Events)
			tmtRoutes.GET("/:variant/result", tmtHandler.Result)
		}

		screeningRoutes := authorized.Group("/api")
		{
			screeningRoutes.GET("/memory-decline", screeningHandler.GetMemoryDecline)
			screeningRoutes.POST("/memory-decline", screeningHandler.SaveMemoryDecline)
			screeningRoutes.GET("/verbal-fluency/:category", screeningHandler.VerbalFluencyResult)
		}

		resultsRoutes := authorized.Group("/api/results")
		{
			resultsRoutes.GET("", resultsHandler.Records)
			resultsRoutes.DELETE("", resultsHandler.ClearRecords)
			resultsRoutes.GET("/timeline", resultsHandler.Timeline)
		}
	}

	return router
}
