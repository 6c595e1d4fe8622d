package handlers

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request once it has been served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		entry := logrus.WithFields(logrus.Fields{
			"duration_ms": m.Duration.Milliseconds(),
			"status":      m.Code,
			"method":      r.Method,
			"path":        r.URL.Path,
			"bytes":       m.Written,
		})
		if r.URL.RawQuery != "" {
			entry = entry.WithField("query", r.URL.RawQuery)
		}
		entry.Info("request")
	})
}
