package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/dispatch"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/store"
)

// ObjectStore is the slice of the blob store the file endpoints need.
// *objectstore.Client implements it.
type ObjectStore interface {
	PresignGet(ctx context.Context, bucket, key string) (string, error)
	GetReader(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Submitter accepts a validated upload and runs the dispatch half of the
// pipeline. *dispatch.Submitter implements it.
type Submitter interface {
	Submit(ctx context.Context, up dispatch.Upload) (*dispatch.Result, error)
}

// FilesHandler handles file upload, listing, download and deletion.
type FilesHandler struct {
	store     *store.GORMStore
	objects   ObjectStore
	submitter Submitter
	maxUpload int64
}

// NewFilesHandler creates a new FilesHandler. maxUpload caps the accepted
// request body size in bytes.
func NewFilesHandler(s *store.GORMStore, objects ObjectStore, submitter Submitter, maxUpload int64) *FilesHandler {
	return &FilesHandler{
		store:     s,
		objects:   objects,
		submitter: submitter,
		maxUpload: maxUpload,
	}
}

// UploadResponse is the response body for POST /api/v1/files/upload.
type UploadResponse struct {
	Status string `json:"status"`
	FileID string `json:"file_id"`
}

// FileSummary is the list representation of an original upload.
type FileSummary struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	SizeBytes    int64             `json:"size_bytes"`
	MimeType     string            `json:"mime_type,omitempty"`
	Status       models.FileStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	DownloadURL  string            `json:"download_url,omitempty"`
}

// FileDetail is the full representation of a file with its processing
// history and derived outputs.
type FileDetail struct {
	*models.File
	Jobs             []*models.Job  `json:"jobs"`
	ProcessedOutputs []*models.File `json:"processed_outputs"`
	AITags           []string       `json:"ai_tags"`
}

// DeleteResponse is the response body for DELETE /api/v1/files/{id}.
type DeleteResponse struct {
	Status string `json:"status"`
}

// parseActions decodes the pipeline_actions form field: a JSON array of
// action names, case-insensitive. An unknown name rejects the whole upload
// before any row or blob is written.
func parseActions(raw string) ([]models.ActionKind, error) {
	if raw == "" {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("pipeline_actions must be a JSON array of strings")
	}

	actions := make([]models.ActionKind, 0, len(names))
	for _, name := range names {
		kind, err := models.ParseActionKind(name)
		if err != nil {
			return nil, err
		}
		actions = append(actions, kind)
	}
	return actions, nil
}

// Upload handles POST /api/v1/files/upload.
//
// The multipart body carries the file under "file" and an optional
// "pipeline_actions" JSON array. The body is spooled to a temp file so the
// submitter can sniff and re-read it; the spool is always removed.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}

	ctx, span := apiSpan(r, telemetry.SpanUpload, claims.UserID)
	defer span.End()
	r = r.WithContext(ctx)

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			PayloadTooLarge(w, fmt.Sprintf("Upload exceeds the %d byte limit", maxBytesErr.Limit))
			return
		}
		BadRequest(w, "Multipart form with a \"file\" field is required")
		return
	}
	defer src.Close()

	actions, err := parseActions(r.FormValue("pipeline_actions"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	spool, err := os.CreateTemp("", "filemill-upload-")
	if err != nil {
		InternalServerError(w, "Failed to store upload")
		return
	}
	defer os.Remove(spool.Name())

	_, err = io.Copy(spool, src)
	if closeErr := spool.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			PayloadTooLarge(w, fmt.Sprintf("Upload exceeds the %d byte limit", maxBytesErr.Limit))
			return
		}
		logger.ErrorCtx(r.Context(), "upload spool failed", logger.Err(err))
		InternalServerError(w, "Failed to store upload")
		return
	}

	result, err := h.submitter.Submit(r.Context(), dispatch.Upload{
		OwnerID:   claims.UserID,
		Filename:  filepath.Base(header.Filename),
		MimeType:  header.Header.Get("Content-Type"),
		LocalPath: spool.Name(),
		Actions:   actions,
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(r.Context(), "upload submission failed",
			logger.OwnerID(claims.UserID),
			logger.Filename(header.Filename),
			logger.Err(err),
		)
		InternalServerError(w, "Failed to store upload")
		return
	}

	telemetry.SetAttributes(ctx,
		telemetry.FileID(result.File.ID),
		telemetry.Filename(result.File.OriginalName),
		telemetry.FileSize(result.File.SizeBytes),
		telemetry.MimeType(result.File.MimeType),
	)
	WriteJSONOK(w, UploadResponse{Status: "success", FileID: result.File.ID})
}

// List handles GET /api/v1/files.
// Returns the owner's original uploads, newest first. Files whose blob is
// directly servable (UPLOADED or READY) carry a presigned download URL.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}

	files, err := h.store.ListFilesByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "file listing failed", logger.OwnerID(claims.UserID), logger.Err(err))
		InternalServerError(w, "Failed to list files")
		return
	}

	summaries := make([]FileSummary, 0, len(files))
	for _, f := range files {
		summary := FileSummary{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			SizeBytes:    f.SizeBytes,
			MimeType:     f.MimeType,
			Status:       f.Status,
			CreatedAt:    f.CreatedAt,
		}
		if f.Status == models.FileUploaded || f.Status == models.FileReady {
			url, err := h.objects.PresignGet(r.Context(), f.Bucket, f.Key)
			if err != nil {
				logger.WarnCtx(r.Context(), "presign failed", logger.FileID(f.ID), logger.Err(err))
			} else {
				summary.DownloadURL = url
			}
		}
		summaries = append(summaries, summary)
	}

	WriteJSONOK(w, summaries)
}

// Get handles GET /api/v1/files/{id}.
// Returns the file with its jobs, derived outputs and AI tags. A foreign
// file surfaces the same 404 as a missing one.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}
	fileID := pathID(r)

	file, err := h.store.GetOwnedFile(r.Context(), fileID, claims.UserID)
	if err != nil {
		writeFileError(w, r, err)
		return
	}

	jobs, err := h.store.ListJobsByFile(r.Context(), fileID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "job listing failed", logger.FileID(fileID), logger.Err(err))
		InternalServerError(w, "Failed to load file details")
		return
	}

	outputs, err := h.store.ListDerivedFiles(r.Context(), fileID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "derived file listing failed", logger.FileID(fileID), logger.Err(err))
		InternalServerError(w, "Failed to load file details")
		return
	}

	tags := []string{}
	meta, err := h.store.GetMetadataByFileID(r.Context(), fileID)
	if err == nil {
		if t := meta.GetAITags(); t != nil {
			tags = t
		}
	} else if !errors.Is(err, models.ErrMetadataNotFound) {
		logger.WarnCtx(r.Context(), "metadata lookup failed", logger.FileID(fileID), logger.Err(err))
	}

	if jobs == nil {
		jobs = []*models.Job{}
	}
	if outputs == nil {
		outputs = []*models.File{}
	}

	WriteJSONOK(w, FileDetail{
		File:             file,
		Jobs:             jobs,
		ProcessedOutputs: outputs,
		AITags:           tags,
	})
}

// Jobs handles GET /api/v1/files/{id}/jobs.
// Returns the file's jobs oldest first.
func (h *FilesHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}
	fileID := pathID(r)

	if _, err := h.store.GetOwnedFile(r.Context(), fileID, claims.UserID); err != nil {
		writeFileError(w, r, err)
		return
	}

	jobs, err := h.store.ListJobsByFile(r.Context(), fileID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "job listing failed", logger.FileID(fileID), logger.Err(err))
		InternalServerError(w, "Failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	WriteJSONOK(w, jobs)
}

// Download handles GET /api/v1/files/{id}/download.
// Streams the blob through the API with an attachment disposition.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}
	fileID := pathID(r)

	ctx, span := apiSpan(r, telemetry.SpanDownload, claims.UserID)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.FileID(fileID))
	r = r.WithContext(ctx)

	file, err := h.store.GetOwnedFile(r.Context(), fileID, claims.UserID)
	if err != nil {
		writeFileError(w, r, err)
		return
	}

	body, info, err := h.objects.GetReader(r.Context(), file.Bucket, file.Key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			NotFound(w, "File not found")
			return
		}
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(r.Context(), "download failed",
			logger.FileID(fileID),
			logger.Bucket(file.Bucket),
			logger.Key(file.Key),
			logger.Err(err),
		)
		InternalServerError(w, "Failed to download file")
		return
	}
	defer body.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	if _, err := io.Copy(w, body); err != nil {
		// Headers are long gone; all we can do is record the broken stream.
		logger.WarnCtx(r.Context(), "download stream interrupted", logger.FileID(fileID), logger.Err(err))
	}
}

// Delete handles DELETE /api/v1/files/{id}.
// Removes the file, its jobs, its derived files and their blobs. Blob
// deletion failures are logged and skipped: the rows are already gone and
// an orphan blob is harmless.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}
	fileID := pathID(r)

	ctx, span := apiSpan(r, telemetry.SpanDelete, claims.UserID)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.FileID(fileID))
	r = r.WithContext(ctx)

	if _, err := h.store.GetOwnedFile(r.Context(), fileID, claims.UserID); err != nil {
		writeFileError(w, r, err)
		return
	}

	refs, err := h.store.DeleteFileCascade(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, models.ErrFileNotFound) {
			NotFound(w, "File not found")
			return
		}
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(r.Context(), "file deletion failed", logger.FileID(fileID), logger.Err(err))
		InternalServerError(w, "Failed to delete file")
		return
	}

	for _, ref := range refs {
		if err := h.objects.Delete(r.Context(), ref.Bucket, ref.Key); err != nil {
			logger.WarnCtx(r.Context(), "blob deletion failed",
				logger.Bucket(ref.Bucket),
				logger.Key(ref.Key),
				logger.Err(err),
			)
		}
	}

	WriteJSONOK(w, DeleteResponse{Status: "deleted"})
}

// writeFileError maps store errors from owned-file lookups onto problem
// responses. Foreign and missing files are indistinguishable to the caller.
func writeFileError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrFileNotFound) {
		NotFound(w, "File not found")
		return
	}
	logger.ErrorCtx(r.Context(), "file lookup failed", logger.Err(err))
	InternalServerError(w, "Failed to load file")
}
