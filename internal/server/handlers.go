package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/video-captioner/internal/caption"
	"github.com/ZacxDev/video-captioner/internal/processor"
	"github.com/ZacxDev/video-captioner/internal/storage"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const multipartMemory = 32 << 20

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".mkv": true, ".avi": true,
}

// requestError is a failure the client can act on.
type requestError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (e *requestError) Error() string {
	return e.Message
}

func badField(field, format string, args ...any) *requestError {
	return &requestError{Status: http.StatusBadRequest, Field: field, Message: fmt.Sprintf(format, args...)}
}

// upload is a parsed caption form.
type upload struct {
	Request  caption.Request
	File     multipart.File
	Filename string
	Size     int64
}

// captionResponse is the JSON body of a finished caption job.
type captionResponse struct {
	ID           string   `json:"id"`
	ResultURL    string   `json:"result_url"`
	PreviewURL   string   `json:"preview_url"`
	DownloadName string   `json:"download_name"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Duration     float64  `json:"duration"`
	Lines        []string `json:"lines"`
}

type indexPage struct {
	Error string
	Form  map[string]string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "index.html", indexPage{})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	resp, rerr := s.caption(w, r)
	if rerr != nil {
		s.renderPage(w, rerr.Status, "index.html", indexPage{Error: rerr.Message, Form: formValues(r)})
		return
	}
	s.renderPage(w, http.StatusOK, "result.html", resp)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	resp, rerr := s.caption(w, r)
	if rerr != nil {
		writeJSON(w, rerr.Status, rerr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := s.store.Resolve(vars["id"], vars["name"])
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "failed to open file", http.StatusInternalServerError)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	free, err := s.store.FreeBytes()
	if err != nil {
		s.logger.Warn("health check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	status := "ok"
	if free < s.cfg.MinFreeBytes {
		status = "low_disk"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"free_bytes": free,
		"format":     s.captioner.Format(),
	})
}

const rateLimitMessage = "rate limit exceeded, try again shortly"

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, &requestError{Message: rateLimitMessage})
}

func (s *Server) rateLimitedPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusTooManyRequests, "index.html", indexPage{Error: rateLimitMessage})
}

// caption runs the shared upload flow of the form and API routes.
func (s *Server) caption(w http.ResponseWriter, r *http.Request) (*captionResponse, *requestError) {
	up, rerr := s.parseUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if rerr != nil {
		return nil, rerr
	}
	defer up.File.Close()

	if rerr := s.checkDisk(); rerr != nil {
		return nil, rerr
	}

	job, err := s.store.NewJob()
	if err != nil {
		s.logger.Error("failed to create job", slog.Any("error", err))
		return nil, &requestError{Status: http.StatusInternalServerError, Message: "failed to store upload"}
	}
	logger := s.logger.With(slog.String("job_id", job.ID))

	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !videoExtensions[ext] {
		ext = ".mp4"
	}
	inputPath := job.InputPath(ext)
	if err := saveUpload(up.File, inputPath); err != nil {
		logger.Error("failed to save upload", slog.Any("error", err))
		job.Remove()
		return nil, &requestError{Status: http.StatusInternalServerError, Message: "failed to store upload"}
	}
	s.metrics.uploadBytes.Observe(float64(up.Size))

	if err := s.jobs.Acquire(r.Context(), 1); err != nil {
		job.Remove()
		return nil, &requestError{Status: http.StatusServiceUnavailable, Message: "request cancelled while waiting for a worker"}
	}
	s.metrics.jobsInFlight.Inc()
	start := time.Now()
	result, err := s.captioner.Process(r.Context(), processor.Job{
		ID:         job.ID,
		InputPath:  inputPath,
		OutputPath: job.ResultPath(s.captioner.Format().Extension()),
		WorkDir:    job.Path,
		Request:    up.Request,
	})
	s.metrics.jobsInFlight.Dec()
	s.jobs.Release(1)

	if err != nil {
		job.Remove()
		var verr *caption.ValidationError
		if errors.As(err, &verr) {
			s.metrics.ObserveJob("invalid", time.Since(start))
			return nil, badField(verr.Field, "%s", verr.Error())
		}
		s.metrics.ObserveJob("error", time.Since(start))
		logger.Error("caption job failed", slog.Any("error", err))
		return nil, &requestError{Status: http.StatusInternalServerError, Message: "failed to caption video"}
	}
	s.metrics.ObserveJob("success", time.Since(start))

	return &captionResponse{
		ID:           job.ID,
		ResultURL:    fileURL(job.ID, result.OutputPath),
		PreviewURL:   fileURL(job.ID, result.InputPath),
		DownloadName: processor.SanitizeFilename(up.Filename) + "_captioned" + filepath.Ext(result.OutputPath),
		Width:        result.Video.Width,
		Height:       result.Video.Height,
		Duration:     result.Video.Duration,
		Lines:        result.Lines,
	}, nil
}

// parseUpload reads and validates the multipart form. The caption text may
// be empty but must be present.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, *requestError) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		return nil, tooLarge(s.cfg.MaxUploadBytes)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(s.cfg.MaxUploadBytes)
		}
		return nil, &requestError{Status: http.StatusBadRequest, Message: "invalid multipart form"}
	}

	values := r.MultipartForm.Value
	texts, ok := values["text"]
	if !ok {
		return nil, badField("text", "text is required")
	}

	rawSize := strings.TrimSpace(first(values["font_size"]))
	if rawSize == "" {
		return nil, badField("font_size", "font_size is required")
	}
	fontSize, err := strconv.Atoi(rawSize)
	if err != nil || fontSize <= 0 {
		return nil, badField("font_size", "font_size must be a positive integer, got %q", rawSize)
	}

	fontColor := strings.TrimSpace(first(values["font_color"]))
	if fontColor == "" {
		return nil, badField("font_color", "font_color is required")
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		return nil, badField("video", "video file is required")
	}

	return &upload{
		Request: caption.Request{
			Text:         first(texts),
			FontSize:     fontSize,
			FontColor:    fontColor,
			OutlineColor: strings.TrimSpace(first(values["outline_color"])),
		},
		File:     file,
		Filename: header.Filename,
		Size:     header.Size,
	}, nil
}

func (s *Server) checkDisk() *requestError {
	if s.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := s.store.FreeBytes()
	if err != nil {
		s.logger.Warn("disk usage unavailable", slog.Any("error", err))
		return nil
	}
	if free < s.cfg.MinFreeBytes {
		s.logger.Warn("rejecting upload, disk low", slog.Uint64("free_bytes", free))
		return &requestError{Status: http.StatusInsufficientStorage, Message: "insufficient disk space"}
	}
	return nil
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render page", slog.String("page", name), slog.Any("error", err))
	}
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create input file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrap(err, "failed to write input file")
	}
	return errors.WithStack(dst.Close())
}

func tooLarge(limit int64) *requestError {
	return &requestError{
		Status:  http.StatusRequestEntityTooLarge,
		Field:   "video",
		Message: fmt.Sprintf("upload exceeds %d bytes", limit),
	}
}

func fileURL(id, path string) string {
	return "/files/" + id + "/" + filepath.Base(path)
}

func formValues(r *http.Request) map[string]string {
	out := map[string]string{}
	if r.MultipartForm == nil {
		return out
	}
	for _, key := range []string{"text", "font_size", "font_color", "outline_color"} {
		out[key] = first(r.MultipartForm.Value[key])
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
