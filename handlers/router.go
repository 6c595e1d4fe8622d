// Package handlers assembles the HTTP surface of the service.
package handlers

import (
	"net/http"

	"campus-store/assignments"
	"campus-store/collections"
	"campus-store/core"
	"campus-store/handlers/api"
	assignmentsapi "campus-store/handlers/api/assignments"
	collectionsapi "campus-store/handlers/api/collections"
	"campus-store/handlers/api/documents"
	uploadsapi "campus-store/handlers/api/uploads"
	"campus-store/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Store       core.DocumentStore
	Collections *collections.Repository
	Uploads     *uploads.Gateway
	Assignments *assignments.Service
	// NoteIDs names stored course notes.
	NoteIDs core.IDGenerator
	// Realtime serves /socket.io/ when set.
	Realtime http.Handler
}

func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/collection/{name}", func(r chi.Router) {
		r.Get("/", collectionsapi.HandleList(deps.Collections))
		r.Post("/", collectionsapi.HandleCreate(deps.Collections))
		r.Put("/", collectionsapi.HandleUpdate(deps.Collections))
		r.Delete("/", collectionsapi.HandleDelete(deps.Collections))
	})

	r.Post("/upload", uploadsapi.HandleUpload(deps.Uploads))
	r.Post("/course-notes", uploadsapi.HandleCourseNote(deps.Uploads, deps.NoteIDs))

	r.Route("/assignments", func(r chi.Router) {
		r.Get("/", assignmentsapi.HandleList(deps.Assignments))
		r.Post("/", assignmentsapi.HandleSubmit(deps.Assignments, deps.Uploads.MaxSize()))
		r.Get("/submitted", assignmentsapi.HandleSubmitted(deps.Assignments))
	})

	r.Get("/objects/*", documents.HandleGet(deps.Store))

	if deps.Realtime != nil {
		r.Handle("/socket.io/", deps.Realtime)
	}
	return r
}
