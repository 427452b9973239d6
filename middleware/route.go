package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/global"
	"github.com/zhihao1021/tjoy/logger"
)

const (
	PathWS      = "/ws"
	PathHealth  = "/healthz"
	PathMetrics = "/metrics"
)

// Gateway is what the router needs from the chat hub.
type Gateway interface {
	HandleWS(c *gin.Context)
	Stats() any
}

type RouteOpt struct {
	AllowedOrigins []string
	Metrics        http.Handler // nil 不暴露 /metrics
	Log            *zap.Logger
}

// NewRouter builds the engine: /ws, /healthz and /metrics.
func NewRouter(gw Gateway, opt RouteOpt) *gin.Engine {
	log := opt.Log
	if log == nil {
		log = logger.Named("http")
	}

	r := gin.New()
	mgr := NewManager()
	mgr.Add("origin", Origin(PathWS, opt.AllowedOrigins))
	r.Use(Recovery(log), AccessLog(log), mgr.Use())

	r.GET(PathWS, gw.HandleWS)
	r.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, global.Success(gw.Stats()))
	})
	if opt.Metrics != nil {
		r.GET(PathMetrics, gin.WrapH(opt.Metrics))
	}
	return r
}
