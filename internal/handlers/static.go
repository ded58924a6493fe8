package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/studentva/internal/dtos"
)

// ResolveStaticDir returns the first candidate that is an existing directory, or "".
func ResolveStaticDir(candidates []string) string {
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// SPA is the NoRoute handler: real files from dir, index.html for any other page,
// and a JSON 404 for unknown API paths.
func SPA(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			notFound(c)
			return
		}
		if dir == "" || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			notFound(c)
			return
		}

		clean := path.Clean("/" + p)
		// http.ServeFile rejects any request path with ".." segments.
		c.Request.URL.Path = clean
		target := filepath.Join(dir, filepath.FromSlash(clean))
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			c.File(target)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			notFound(c)
			return
		}
		c.File(index)
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, dtos.ApplyResponse{Success: false, Message: "Not found"})
}
