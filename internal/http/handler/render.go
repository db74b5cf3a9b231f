package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRenderer renders flow errors as a 403 response, through the
// operator-supplied HTML template when one is configured and parseable,
// otherwise as a minimal plain-text body.
type ErrorRenderer struct {
	tmpl   *template.Template
	logger *zap.Logger
}

// NewErrorRenderer loads the optional template at path. A missing or
// invalid template is logged and the renderer falls back to plain text.
func NewErrorRenderer(path string, logger *zap.Logger) *ErrorRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ErrorRenderer{logger: logger}
	if path == "" {
		return r
	}
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		logger.Warn("oauth error template not usable, falling back to plain text",
			zap.String("path", path), zap.Error(err))
		return r
	}
	r.tmpl = tmpl
	return r
}

// Render writes the 403 error response for the given message.
func (r *ErrorRenderer) Render(c *gin.Context, message string) {
	r.logger.Error("oauth error", zap.String("message", message))
	if r.tmpl != nil {
		var buf bytes.Buffer
		err := r.tmpl.Execute(&buf, gin.H{"Message": message})
		if err == nil {
			c.Data(http.StatusForbidden, "text/html; charset=utf-8", buf.Bytes())
			return
		}
		r.logger.Warn("oauth error template execution failed", zap.Error(err))
	}
	c.String(http.StatusForbidden, "Error: %s", message)
}
