package server

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/batch"
	"github.com/pixfeed/pixfeed/envconfig"
	"github.com/pixfeed/pixfeed/version"
)

var ErrMaxQueue = errors.New("server busy, please try again, maximum pending requests exceeded")

// GenerateRoutes builds the HTTP surface over a dispatcher.
func GenerateRoutes(d *batch.Dispatcher) *gin.Engine {
	if !envconfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowOrigins = envconfig.AllowOrigins

	r := gin.Default()
	r.Use(cors.New(corsConfig))

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "pixfeed is running") })

	r.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.Version})
	})

	pending := make(chan struct{}, envconfig.MaxQueuedRequests)

	r.POST("/api/fetch", func(c *gin.Context) {
		select {
		case pending <- struct{}{}:
			defer func() { <-pending }()
		default:
			c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Message: ErrMaxQueue.Error()})
			return
		}

		var req api.FetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
			return
		}

		resp, err := d.Fetch(c.Request.Context(), &req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, api.ErrInvalidOption) {
				status = http.StatusBadRequest
			}
			c.JSON(status, api.ErrorResponse{Message: err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	})

	return r
}

// Serve runs the HTTP server until the listener closes, finalizing the
// dispatcher on the way out.
func Serve(ln net.Listener, d *batch.Dispatcher) error {
	defer d.Close()

	slog.Info("listening", "addr", ln.Addr())
	s := &http.Server{
		Handler: GenerateRoutes(d),
	}

	return s.Serve(ln)
}
