package web

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/web/templates"
)

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UploadID  int64  `json:"upload_id,omitempty"`
	TotalRows int    `json:"total_rows,omitempty"`
	Code      string `json:"code,omitempty"`
}

// UploadsResponse is the body of GET /uploads.
type UploadsResponse struct {
	Success bool         `json:"success"`
	Uploads []core.Batch `json:"uploads"`
}

// UploadDataResponse is the body of GET /upload/{id}/data.
type UploadDataResponse struct {
	Success bool       `json:"success"`
	Upload  core.Batch `json:"upload"`
	Data    []core.Row `json:"data"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.UploadPage(templates.PageData{MaxFileSize: s.service.MaxFileSize()})
	if err := page.Render(r.Context(), w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError, "")
	}
}

// handleUpload ingests the multipart field "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		} else {
			err = fmt.Errorf("%w: %v", core.ErrNoFile, err)
		}
		s.respondUploadError(w, r, err)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	result, err := s.service.Upload(r.Context(), core.UploadRequest{
		FileName: header.Filename,
		Body:     file,
	})
	if err != nil {
		s.respondUploadError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, UploadResponse{
		Success:   true,
		Message:   fmt.Sprintf("CSV uploaded successfully! %d rows processed.", result.TotalRows),
		UploadID:  result.BatchID,
		TotalRows: result.TotalRows,
	})
}

func (s *Server) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err), core.UploadFailureMessage(err))
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError, "Error fetching uploads")
		return
	}
	writeJSON(w, r, http.StatusOK, UploadsResponse{Success: true, Uploads: batches})
}

func (s *Server) handleUploadData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, fmt.Errorf("%w: id %q", core.ErrBatchNotFound, chi.URLParam(r, "id")),
			http.StatusNotFound, "Upload not found")
		return
	}

	detail, err := s.service.GetBatchDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrBatchNotFound) {
			respondError(w, r, err, http.StatusNotFound, "Upload not found")
			return
		}
		respondError(w, r, err, http.StatusInternalServerError, "Error fetching data")
		return
	}

	writeJSON(w, r, http.StatusOK, UploadDataResponse{
		Success: true,
		Upload:  detail.Batch,
		Data:    detail.Rows,
	})
}

// ============================================================================
// Diagnostics
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.service.Health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, r, status, report)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("pong"))
}

// StatusResponse is the body of GET /status. It never touches the database.
type StatusResponse struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Environment string                   `json:"environment"`
	Uptime      string                   `json:"uptime"`
	Uploads     core.UploadLimiterStatus `json:"uploads"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, StatusResponse{
		Status:      "running",
		Timestamp:   time.Now().UTC(),
		Environment: s.cfg.Environment(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Uploads:     s.service.Limiter().Status(),
	})
}

// DebugResponse is the body of GET /debug. Database info never contains
// credentials.
type DebugResponse struct {
	Status         string         `json:"status"`
	GoVersion      string         `json:"go_version"`
	DatabaseURLSet bool           `json:"database_url_set"`
	DatabaseInfo   core.StoreInfo `json:"database_info"`
	Environment    string         `json:"environment"`
	Routes         []string       `json:"routes"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var routes []string
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	}
	if err := chi.Walk(s.router, walk); err != nil {
		respondError(w, r, err, http.StatusInternalServerError, "")
		return
	}
	sort.Strings(routes)

	writeJSON(w, r, http.StatusOK, DebugResponse{
		Status:         "running",
		GoVersion:      runtime.Version(),
		DatabaseURLSet: s.cfg.Database.URL != "",
		DatabaseInfo:   s.service.StoreInfo(),
		Environment:    s.cfg.Environment(),
		Routes:         routes,
	})
}
