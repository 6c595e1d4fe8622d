package documents

import (
	"net/http"
	"strconv"
	"strings"

	"campus-store/core"
	"campus-store/handlers/api"

	"github.com/go-chi/chi/v5"
)

// HandleGet serves a stored object by key, so that the URLs handed out by
// the upload gateway resolve for backends without public object URLs.
func HandleGet(documentStore core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		document, err := documentStore.Get(r.Context(), key)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}

		etag := document.Version
		if etag != "" && !strings.HasPrefix(etag, `"`) {
			etag = strconv.Quote(etag)
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		contentType := document.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(document.Data.Len()))
		w.Write(document.Data.Bytes())
	}
}
