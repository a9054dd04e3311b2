package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minescope/minescope"
	"github.com/minescope/minescope/config"
)

func NewAPI(prober *minescope.Prober, cfg config.Config) API {
	gin.SetMode(gin.ReleaseMode)
	api := &api{
		prober: prober,
		cfg:    cfg,
	}
	if cfg.RateLimit > 0 {
		api.limiter = newRateLimiter(cfg.RateLimit, cfg.RateCooldown)
	}
	return api
}

type API interface {
	Run(addr string) error
	Serve(listener net.Listener) error
	Handler() http.Handler
	Close()
}

type api struct {
	prober  *minescope.Prober
	cfg     config.Config
	limiter *rateLimiter
	server  http.Server
}

func (api *api) Close() {
	api.server.Close()
}

func (api *api) Run(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return api.Serve(listener)
}

func (api *api) Serve(listener net.Listener) error {
	if api.cfg.AcceptProxyProtocol {
		listener = &proxyproto.Listener{Listener: listener}
	}
	api.server = http.Server{Handler: api.Handler()}
	err := api.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (api *api) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.corsHeaders)

	status := []gin.HandlerFunc{api.statusHandler}
	if api.limiter != nil {
		status = append([]gin.HandlerFunc{api.limitClients}, status...)
	}

	router.GET("/v1/status/:address", status...)
	router.GET("/v1/ping", api.pingHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (api *api) corsHeaders(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", api.cfg.AllowOrigin)
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET")
}

func (api *api) limitClients(c *gin.Context) {
	if api.limiter.take(c.ClientIP()) {
		return
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"online": false,
		"error":  "ratelimit",
		"detail": "too many requests",
	})
}

func (api *api) statusHandler(c *gin.Context) {
	modeText := c.Query("mode")
	if modeText == "" {
		modeText = api.cfg.Mode
	}
	mode, err := minescope.ParseProbeMode(modeText)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"online": false,
			"error":  "mode",
			"detail": err.Error(),
		})
		return
	}

	addr := c.Param("address")
	if mode == minescope.ModeDouble {
		results, err := api.prober.ProbeDouble(c.Request.Context(), addr)
		if err != nil {
			api.probeErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
		return
	}

	result, err := api.prober.Probe(c.Request.Context(), addr, mode)
	if err != nil {
		api.probeErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (api *api) pingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (api *api) probeErrorResponse(c *gin.Context, err error) {
	kind := minescope.KindConnection
	var probeErr *minescope.ProbeError
	if errors.As(err, &probeErr) {
		kind = probeErr.Kind
	}

	status := http.StatusBadGateway
	switch kind {
	case minescope.KindAddress:
		status = http.StatusBadRequest
	case minescope.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, gin.H{
		"online": false,
		"error":  kind.String(),
		"detail": err.Error(),
	})
}
