package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"betfair_go/internal/domain"
	"betfair_go/internal/service"

	"github.com/go-chi/chi/v5"
)

// uploadResponse is the reduced body returned after a successful upload.
type uploadResponse struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	Status    string `json:"status"`
	SizeBytes int64  `json:"size_bytes"`
}

// uploadFile accepts a multipart upload, parses it synchronously and
// returns the file id of the stored result.
func (a *API) uploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	resp, err := a.Service.ParseUpload(r.Context(), header.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyFile):
			writeError(w, http.StatusBadRequest, "empty file")
		case errors.Is(err, domain.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, domain.ErrNotBzip2):
			writeError(w, http.StatusBadRequest, "expected a BZip2 compressed file (.bz2)")
		case errors.Is(err, domain.ErrNoRecords):
			writeError(w, http.StatusBadRequest, "no valid records found in file")
		case errors.Is(err, domain.ErrStreamRead):
			writeError(w, http.StatusBadRequest, "file is corrupt or truncated")
		default:
			a.Logger.Error("upload failed", slog.String("file_name", header.Filename), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "parsing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:    resp.FileMetadata.FileID,
		FileName:  resp.FileMetadata.FileName,
		Status:    resp.FileMetadata.ProcessingStatus,
		SizeBytes: resp.FileMetadata.SizeBytes,
	})
}

func (a *API) getFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := a.Service.GetFile(id)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.Service.ListFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(files),
		"files": files,
	})
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Service.DeleteFile(id); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted", "file_id": id})
}

func (a *API) exportFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export request")
		return
	}

	res, err := a.Service.Export(id, req)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", res.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Content)
}
