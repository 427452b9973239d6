package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects browser upgrades to wsPath whose Origin is not in allowed.
// An empty list allows every origin; requests without an Origin header
// (non-browser clients) always pass.
func Origin(wsPath string, allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(strings.TrimRight(a, "/"))] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(set) == 0 || c.Request.Method != http.MethodGet || c.Request.URL.Path != wsPath {
			return
		}
		o := c.GetHeader("Origin")
		if o == "" {
			return
		}
		if _, ok := set[strings.ToLower(o)]; ok {
			return
		}
		// 兼容只配置了 host 的写法
		if u, err := url.Parse(o); err == nil {
			if _, ok := set[strings.ToLower(u.Host)]; ok {
				return
			}
		}
		c.AbortWithStatus(http.StatusForbidden)
	}
}
