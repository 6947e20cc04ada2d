package http

import (
	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/ipam-service/internal/config"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
}

func NewServer(cfg *config.Config, handler *Handler) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "ipam-service",
		})
	})

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	{
		// Region slots
		user.POST("/regions", s.handler.AllocateRegion)
		user.PATCH("/regions/:id", s.handler.UpdateRegion)
		user.DELETE("/regions/:id", s.handler.RetireRegion)
		user.GET("/regions/:id/hosts/:z/address", s.handler.LookupHostAddress)

		// Host slots
		user.POST("/hosts", s.handler.AllocateHost)
		user.POST("/hosts/batch", s.handler.AllocateHostsBatch)
		user.DELETE("/hosts/:id", s.handler.RetireHost)

		// Reservations
		user.GET("/reservations", s.handler.ListReservations)
		user.POST("/reservations", s.handler.CreateReservation)
		user.POST("/reservations/:id/convert", s.handler.ConvertReservation)
		user.POST("/reservations/:id/cancel", s.handler.CancelReservation)

		// Quota and address lookups
		user.GET("/my/regions", s.handler.ListMyRegions)
		user.GET("/my/quota", s.handler.GetQuota)
		user.GET("/addresses/:address", s.handler.InterpretAddress)
	}

	// Public API - no authentication required
	public := s.router.Group("/api/v1/public")
	{
		public.GET("/countries", s.handler.GetCountries)
		public.GET("/continents", s.handler.GetContinents)
	}

	// Internal API - called by user-portal (需要 Internal Secret)
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.GET("/audit", s.handler.GetAuditHistory)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
