// Package api exposes the vericloud service over HTTP. It maps requests to
// Service calls and Service errors to status codes; all storage semantics
// live in the service.
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

// Handler handles file upload and management API endpoints
type Handler struct {
	service       vericloud.Service
	maxUploadSize int64
}

// NewHandler creates a new files API handler. maxUploadSize bounds how much
// of each multipart part is read into memory; the service enforces the
// actual payload limit.
func NewHandler(service vericloud.Service, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = vericloud.DefaultMaxUploadSize
	}
	return &Handler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the router for the files API, meant to be mounted under
// /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", h.UploadFile)
	r.Post("/upload-multiple", h.UploadMultiple)
	r.Get("/files", h.ListFiles)
	r.Get("/files/{fileID}", h.GetFile)
	r.Get("/files/{fileID}/content", h.GetFileContent)
	r.Get("/download/{fileID}", h.DownloadFile)
	r.Put("/files/{fileID}", h.UpdateFile)
	r.Delete("/files/{fileID}", h.DeleteFile)
	return r
}

// envelope is the response shape expected by existing clients.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// UploadFile stores a single file from the multipart field "file"
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUploadPart(r, "file")
	if err != nil {
		h.renderError(w, r, "upload", err)
		return
	}

	record, err := h.service.Upload(r.Context(), *req)
	if err != nil {
		h.renderError(w, r, "upload", err)
		return
	}

	slog.Info("file uploaded", "id", record.ID, "name", record.OriginalName, "size", record.Size)
	render.JSON(w, r, envelope{
		Success: true,
		Message: "File uploaded successfully",
		Data:    record,
	})
}

// UploadMultiple stores every file in the multipart field "files",
// collecting per-item failures instead of aborting.
func (h *Handler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.renderError(w, r, "upload-multiple", badRequestError{err})
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.renderError(w, r, "upload-multiple", badRequestError{errors.New("no files provided")})
		return
	}

	reqs := make([]vericloud.UploadRequest, 0, len(headers))
	for _, hdr := range headers {
		req, err := h.readUploadHeader(hdr)
		if err != nil {
			h.renderError(w, r, "upload-multiple", err)
			return
		}
		reqs = append(reqs, *req)
	}

	result := h.service.UploadBatch(r.Context(), reqs)

	slog.Info("batch upload finished", "succeeded", len(result.Succeeded), "failed", len(result.Failed))
	render.JSON(w, r, envelope{
		Success: true,
		Message: fmt.Sprintf("Uploaded %d file(s)", len(result.Succeeded)),
		Data:    result.Succeeded,
		Errors:  result.Failed,
	})
}

// ListFiles returns all metadata records, newest first
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.renderError(w, r, "list", err)
		return
	}

	count := len(records)
	render.JSON(w, r, envelope{
		Success: true,
		Data:    records,
		Count:   &count,
	})
}

// GetFile returns the metadata record for one file
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.renderError(w, r, "get", err)
		return
	}

	render.JSON(w, r, envelope{Success: true, Data: record})
}

// GetFileContent returns the file's content decoded as UTF-8 text
func (h *Handler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.GetContent(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.renderError(w, r, "get content", err)
		return
	}

	render.JSON(w, r, envelope{Success: true, Data: content})
}

// DownloadFile returns the raw blob bytes with download headers
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Download(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.renderError(w, r, "download", err)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		slog.Error("failed to write download body", "error", err)
	}
}

// UpdateFile replaces the content of an existing file
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUploadPart(r, "file")
	if err != nil {
		h.renderError(w, r, "update", err)
		return
	}

	record, err := h.service.Update(r.Context(), vericloud.UpdateRequest{
		ID:          chi.URLParam(r, "fileID"),
		Data:        req.Data,
		ContentType: req.ContentType,
	})
	if err != nil {
		h.renderError(w, r, "update", err)
		return
	}

	slog.Info("file updated", "id", record.ID, "size", record.Size)
	render.JSON(w, r, envelope{
		Success: true,
		Message: "File updated successfully",
		Data:    record,
	})
}

// DeleteFile removes a file and its metadata
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")
	name, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.renderError(w, r, "delete", err)
		return
	}

	slog.Info("file deleted", "id", id, "name", name)
	render.JSON(w, r, envelope{
		Success: true,
		Message: fmt.Sprintf("File '%s' deleted successfully", name),
	})
}

// readUploadPart extracts one multipart file field into an UploadRequest.
func (h *Handler) readUploadPart(r *http.Request, field string) (*vericloud.UploadRequest, error) {
	file, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, badRequestError{fmt.Errorf("missing %q form field: %w", field, err)}
	}
	defer file.Close()

	return h.buildUploadRequest(file, hdr)
}

func (h *Handler) readUploadHeader(hdr *multipart.FileHeader) (*vericloud.UploadRequest, error) {
	file, err := hdr.Open()
	if err != nil {
		return nil, badRequestError{fmt.Errorf("failed to open multipart file: %w", err)}
	}
	defer file.Close()

	return h.buildUploadRequest(file, hdr)
}

func (h *Handler) buildUploadRequest(file multipart.File, hdr *multipart.FileHeader) (*vericloud.UploadRequest, error) {
	// One extra byte so the service can still see an over-limit payload.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	return &vericloud.UploadRequest{
		FileName:    hdr.Filename,
		Data:        data,
		ContentType: hdr.Header.Get("Content-Type"),
	}, nil
}

// badRequestError marks transport-level validation failures as 400s.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "error", err)
	} else {
		slog.Info("request rejected", "op", op, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, envelope{Success: false, Detail: err.Error()})
}

func statusFor(err error) int {
	var badReq badRequestError
	switch {
	case errors.Is(err, vericloud.ErrFileNotFound), errors.Is(err, vericloud.ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, vericloud.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, vericloud.ErrNotText):
		return http.StatusBadRequest
	case errors.Is(err, vericloud.ErrExists):
		return http.StatusConflict
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
