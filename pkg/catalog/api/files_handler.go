package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

const (
	// multipartOverhead is the allowance for boundaries and text fields on top of the file limit
	multipartOverhead int64 = 1 << 20

	// formMemory bounds how much of a multipart form is held in memory; the rest spills to disk
	formMemory int64 = 8 << 20
)

// FilesHandler serves the document catalog endpoints
type FilesHandler struct {
	service       catalog.Service
	maxUploadSize int64
	logger        *slog.Logger
}

func NewFilesHandler(service catalog.Service, maxUploadSize int64, logger *slog.Logger) *FilesHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = catalog.DefaultMaxUploadSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", h.Upload)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/download", h.Download)
	r.Delete("/{id}", h.Delete)
	return r
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	Message string              `json:"message"`
	File    *catalog.FileRecord `json:"file"`
}

// Upload accepts a multipart form with a "file" part and optional descriptive fields
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		if isBodyTooLarge(err) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "File too large", "")
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			h.writeError(w, r, http.StatusBadRequest, "No file uploaded", "")
			return
		}
		h.logger.Warn("failed to parse upload form", "error", err)
		h.writeError(w, r, http.StatusBadRequest, "Invalid upload form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(catalog.DefaultFieldName)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "No file uploaded", "")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "File too large", "")
		return
	}

	var examYear int
	if v := strings.TrimSpace(r.FormValue("examYear")); v != "" {
		examYear, err = strconv.Atoi(v)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "Invalid examYear", "examYear must be an integer")
			return
		}
	}

	record, err := h.service.Upload(r.Context(), catalog.UploadRequest{
		Reader:       file,
		FieldName:    catalog.DefaultFieldName,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		SizeLimit:    h.maxUploadSize,
		Title:        r.FormValue("title"),
		ExamType:     r.FormValue("examType"),
		ExamYear:     examYear,
		PublishDate:  r.FormValue("publishDate"),
		Description:  r.FormValue("description"),
	})
	if err != nil {
		h.writeServiceError(w, r, "Upload failed", err)
		return
	}

	h.logger.Info("file uploaded", "id", record.ID, "original_name", record.OriginalName, "size", record.SizeBytes)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{Message: "File uploaded successfully", File: record})
}

// List returns every record in insertion order
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to fetch files", err)
		return
	}
	render.JSON(w, r, records)
}

// Get returns a single record
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to fetch file", err)
		return
	}
	render.JSON(w, r, record)
}

// Download streams the blob as an attachment named after the original file
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	dl, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Download failed", err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition(dl.FileName))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		// headers are gone; all we can do is log
		h.logger.Warn("download interrupted", "id", id, "error", err)
	}
}

// Delete removes the blob and its record
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "Delete failed", err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "File deleted successfully"})
}

// parseID treats a malformed id as an unknown one
func (h *FilesHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "File not found", "")
		return uuid.Nil, false
	}
	return id, true
}

func (h *FilesHandler) writeServiceError(w http.ResponseWriter, r *http.Request, failure string, err error) {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		h.writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, catalog.ErrRecordNotFound):
		h.writeError(w, r, http.StatusNotFound, "File not found", "")
	case errors.Is(err, catalog.ErrBlobNotFound):
		h.writeError(w, r, http.StatusNotFound, "File not found on disk", "")
	case errors.Is(err, catalog.ErrSizeLimitExceeded):
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "File too large", "")
	default:
		h.logger.Error(failure, "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, failure, err.Error())
	}
}

func (h *FilesHandler) writeError(w http.ResponseWriter, r *http.Request, status int, msg, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Message: detail})
}

func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
