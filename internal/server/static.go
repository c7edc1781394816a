package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the frontend from the configured directory. Unknown
// non-API paths fall back to index.html so client side routes resolve.
func (s *Server) mountStatic() {
	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		s.engine.NoRoute(apiNotFound)
		return
	}

	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		s.engine.NoRoute(apiNotFound)
		return
	}

	root := gin.Dir(s.staticDir, false)
	indexPath := filepath.Join(s.staticDir, "index.html")
	_, indexErr := os.Stat(indexPath)
	if indexErr != nil {
		s.logger.Warn("index.html not found", "path", indexPath, "error", indexErr)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if strings.HasPrefix(reqPath, "/api/") || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			apiNotFound(c)
			return
		}

		name := path.Clean("/" + reqPath)
		if name != "/" {
			if f, err := root.Open(name); err == nil {
				stat, statErr := f.Stat()
				_ = f.Close()
				if statErr == nil && !stat.IsDir() {
					c.FileFromFS(name, root)
					return
				}
			}
		}

		if indexErr != nil {
			apiNotFound(c)
			return
		}
		c.File(indexPath)
	})
}

func apiNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
}
