// Package http serves the loopback API the wallet UI talks to.
package http

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/monitor"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = rate.Limit(5)
	DefaultRateBurst = 10
)

var errRateLimited = errors.New("too many requests")

type Deps struct {
	UI            UI
	Bridge        Bridge
	Networks      NetworkLister
	Notifications NotificationSource
	Pending       PendingSource
	Metrics       *monitor.Metrics
	Gatherer      prometheus.Gatherer
}

type Options struct {
	AllowedOrigins []string
	// RateLimit applies to mutating endpoints. Zero uses DefaultRateLimit.
	RateLimit rate.Limit
	RateBurst int
}

type Server struct {
	deps    Deps
	engine  *gin.Engine
	limiter *rate.Limiter
	origins map[string]struct{}
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.RateLimit == 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}

	s := &Server{
		deps:    deps,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		origins: make(map[string]struct{}, len(opts.AllowedOrigins)),
	}
	for _, o := range opts.AllowedOrigins {
		o = normalizeOrigin(o)
		if o == "" {
			continue
		}
		s.origins[o] = struct{}{}
	}

	s.engine = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.deps.Metrics.GinMiddleware())
	r.Use(withLocalGuards())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: s.originAllowed,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          10 * time.Minute,
	}))
	r.Use(logServerErrors())

	r.GET("/healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(monitor.Handler(s.deps.Gatherer)))
	}

	api := r.Group("/api")
	{
		api.GET("/wallet/state", s.handleState)
		api.GET("/wallet/status", s.handleStatus)
		api.GET("/wallet/pending", s.handlePending)
		api.GET("/wallet/pending/qr", s.handlePendingQR)
		api.GET("/notifications", s.handleNotifications)
		api.GET("/networks", s.handleNetworks)

		mutating := api.Group("", s.withRateLimit())
		mutating.POST("/wallet/connect", s.handleConnect)
		mutating.POST("/wallet/disconnect", s.handleDisconnect)
		mutating.POST("/wallet/network", s.handleSetNetwork)
		mutating.POST("/wallet/transactions", s.handleTransaction)
		mutating.POST("/nft/mint", s.handleMint)
	}

	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) originAllowed(origin string) bool {
	_, ok := s.origins[normalizeOrigin(origin)]
	return ok
}

// withLocalGuards only admits loopback peers addressing a local host name.
func withLocalGuards() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, apiResponse{Error: "forbidden"})
			return
		}
		if !isSafeLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, apiResponse{Error: "forbidden host"})
			return
		}
		c.Next()
	}
}

func (s *Server) withRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			respondError(c, http.StatusTooManyRequests, errRateLimited, nil)
			return
		}
		c.Next()
	}
}

func logServerErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			log.Warn("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
			)
		}
	}
}
