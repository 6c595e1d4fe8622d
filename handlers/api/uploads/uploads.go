package uploads

import (
	"errors"
	"io"
	"net/http"
	"time"

	"campus-store/core"
	"campus-store/handlers/api"
	"campus-store/uploads"

	"github.com/go-chi/render"
)

const (
	// multipartMemory is the part of a form kept in memory while parsing.
	multipartMemory = 1 << 20
	// formOverhead allows for multipart boundaries and the other fields.
	formOverhead = 64 << 10

	notesCategory = "course-notes"
)

type (
	UploadResponse struct {
		Success  bool   `json:"success"`
		URL      string `json:"url"`
		FileName string `json:"fileName"`
		BlobName string `json:"blobName"`
	}

	CourseNoteRequest struct {
		CourseTitle   string `json:"courseTitle"`
		DocumentTitle string `json:"documentTitle"`
		FileName      string `json:"fileName"`
		FileContent   string `json:"fileContent"`
		FileType      string `json:"fileType"`
	}

	CourseNote struct {
		ID            string             `json:"id"`
		CourseTitle   string             `json:"courseTitle"`
		DocumentTitle string             `json:"documentTitle"`
		FileName      string             `json:"fileName"`
		FileType      string             `json:"fileType"`
		FileContent   string             `json:"fileContent"`
		UploadedAt    string             `json:"uploadedAt"`
		Metadata      CourseNoteMetadata `json:"metadata"`
	}

	CourseNoteMetadata struct {
		OriginalFileName string `json:"originalFileName"`
		FileSize         int    `json:"fileSize"`
		MimeType         string `json:"mimeType"`
	}

	CourseNoteResponse struct {
		Success      bool   `json:"success"`
		CourseNoteID string `json:"courseNoteId"`
		BlobURL      string `json:"blobUrl"`
	}
)

// ReadFile parses a multipart form capped to limit and returns the content
// of its "file" part.
func ReadFile(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, string, error) {
	if err := ParseForm(w, r, limit); err != nil {
		return nil, "", "", err
	}
	return FormFile(r, limit)
}

// FormFile returns the content, file name and content type of the "file"
// part of an already parsed form.
func FormFile(r *http.Request, limit int64) ([]byte, string, string, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", "", core.Validation("no file provided")
	}
	if err != nil {
		return nil, "", "", api.FormError(err, limit)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", api.FormError(err, limit)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		// browsers send this for anything they do not recognise
		contentType = ""
	}
	return content, header.Filename, contentType, nil
}

func ParseForm(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return api.FormError(err, limit)
	}
	return nil
}

// HandleUpload stores the "file" part of a multipart form, under the
// optional "category" field.
func HandleUpload(gateway *uploads.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, name, contentType, err := ReadFile(w, r, gateway.MaxSize())
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		receipt, err := gateway.Submit(r.Context(), uploads.Payload{
			Kind:          uploads.KindBinary,
			Content:       content,
			SuggestedName: name,
			Category:      r.FormValue("category"),
			ContentType:   contentType,
		})
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, UploadResponse{
			Success:  true,
			URL:      receipt.URL,
			FileName: receipt.OriginalName,
			BlobName: receipt.Key,
		})
	}
}

// HandleCourseNote stores a course note as a JSON object below
// course-notes/<course>.
func HandleCourseNote(gateway *uploads.Gateway, ids core.IDGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, gateway.MaxSize()+formOverhead)
		req := &CourseNoteRequest{}
		if err := render.DecodeJSON(r.Body, req); err != nil {
			api.RenderError(w, r, api.FormError(err, gateway.MaxSize()))
			return
		}
		if req.CourseTitle == "" || req.DocumentTitle == "" || req.FileName == "" || req.FileContent == "" {
			api.RenderError(w, r, core.Validation("missing required fields"))
			return
		}

		note := CourseNote{
			ID:            ids.Next(),
			CourseTitle:   req.CourseTitle,
			DocumentTitle: req.DocumentTitle,
			FileName:      req.FileName,
			FileType:      req.FileType,
			FileContent:   req.FileContent,
			UploadedAt:    time.Now().UTC().Format(core.TimeLayout),
			Metadata: CourseNoteMetadata{
				OriginalFileName: req.FileName,
				FileSize:         len(req.FileContent),
				MimeType:         req.FileType,
			},
		}
		receipt, err := gateway.SubmitJSON(r.Context(), notesCategory+"/"+req.CourseTitle, req.FileName, note)
		if err != nil {
			api.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, CourseNoteResponse{
			Success:      true,
			CourseNoteID: note.ID,
			BlobURL:      receipt.URL,
		})
	}
}
