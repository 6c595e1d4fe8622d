package collections

import (
	"net/http"

	"campus-store/collections"
	"campus-store/core"
	"campus-store/handlers/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// idParams are the query parameters naming a record, in order of
// preference. sessionId is accepted for older clients.
var idParams = []string{"id", "sessionId"}

// HandleList answers the records of a collection. Query parameters filter
// by field value; ?id= answers that single record.
func HandleList(repo *collections.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		query := r.URL.Query()

		if id := query.Get("id"); id != "" {
			record, err := repo.Get(r.Context(), name, id)
			if err != nil {
				api.RenderError(w, r, err)
				return
			}
			render.JSON(w, r, record)
			return
		}

		filter := make(map[string]string, len(query))
		for k := range query {
			filter[k] = query.Get(k)
		}
		records, err := repo.ListWhere(r.Context(), name, filter)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, records)
	}
}

func HandleCreate(repo *collections.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := api.ReadFields(r)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		record, err := repo.Create(r.Context(), chi.URLParam(r, "name"), payload)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, record)
	}
}

func HandleUpdate(repo *collections.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, err := api.ReadFields(r)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		record, err := repo.Update(r.Context(), chi.URLParam(r, "name"), patch)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, record)
	}
}

func HandleDelete(repo *collections.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		for _, p := range idParams {
			if id = r.URL.Query().Get(p); id != "" {
				break
			}
		}
		if id == "" {
			api.RenderError(w, r, core.Validation("record id is required"))
			return
		}
		removed, err := repo.Delete(r.Context(), chi.URLParam(r, "name"), id)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		if !removed {
			api.RenderError(w, r, core.NotFound("record "+id))
			return
		}
		render.JSON(w, r, api.SuccessResponse{Success: true})
	}
}
