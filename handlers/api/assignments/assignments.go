package assignments

import (
	"net/http"

	"campus-store/assignments"
	"campus-store/core"
	"campus-store/handlers/api"
	"campus-store/handlers/api/uploads"
	gateway "campus-store/uploads"

	"github.com/go-chi/render"
)

type SubmittedResponse struct {
	Submitted bool `json:"submitted"`
}

// HandleSubmit accepts a multipart form with courseTitle, uploadType and
// either a "file" part or a "content" field.
func HandleSubmit(svc *assignments.Service, maxSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uploads.ParseForm(w, r, maxSize); err != nil {
			api.RenderError(w, r, err)
			return
		}
		sub := assignments.Submission{
			CourseTitle: r.FormValue("courseTitle"),
			Kind:        gateway.Kind(r.FormValue("uploadType")),
			FileName:    r.FormValue("fileName"),
		}
		if sub.Kind == "" {
			sub.Kind = gateway.KindText
		}

		if len(r.MultipartForm.File["file"]) > 0 {
			content, name, contentType, err := uploads.FormFile(r, maxSize)
			if err != nil {
				api.RenderError(w, r, err)
				return
			}
			sub.Content, sub.ContentType = content, contentType
			if sub.FileName == "" {
				sub.FileName = name
			}
		} else {
			sub.Content = []byte(r.FormValue("content"))
		}

		record, err := svc.Submit(r.Context(), sub)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, record)
	}
}

func HandleList(svc *assignments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ForCourse(r.Context(), r.URL.Query().Get("courseTitle"))
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, records)
	}
}

func HandleSubmitted(svc *assignments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := r.URL.Query().Get("courseTitle")
		if course == "" {
			api.RenderError(w, r, core.Validation("course title is required"))
			return
		}
		render.JSON(w, r, SubmittedResponse{Submitted: svc.Submitted(course)})
	}
}
