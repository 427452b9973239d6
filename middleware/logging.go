package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/global"
	"github.com/zhihao1021/tjoy/tools/errs"
)

// AccessLog writes one line per request. The /ws request is logged when the
// socket closes, so its latency is the connection lifetime.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				log.Error("http handler panic", zap.String("path", c.Request.URL.Path), zap.Error(err))
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, global.Fail(err))
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
