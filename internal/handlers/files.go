package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"giffer/internal/filesystem"
	"giffer/internal/logging"
	"giffer/internal/media"
	"giffer/internal/mediatypes"
	"giffer/internal/reconciler"
	"giffer/internal/tagstore"
)

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Path string `json:"path"`
}

// IngestResponse reports the library name an ingested file was stored under.
type IngestResponse struct {
	reconciler.Result
	Filename string `json:"filename,omitempty"`
}

// GetFile serves a raw library file.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	path, err := h.library.Path(name)
	if err != nil {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}
	info, err := h.library.Stat(name)
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(name))
	http.ServeFile(w, r, path)
}

// GetThumbnail serves a JPEG thumbnail of a library image.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	data, err := h.thumbs.GetThumbnail(name)
	if err != nil {
		switch {
		case errors.Is(err, filesystem.ErrInvalidName):
			http.Error(w, "Invalid filename", http.StatusBadRequest)
		case errors.Is(err, os.ErrNotExist):
			http.Error(w, "File not found", http.StatusNotFound)
		case errors.Is(err, media.ErrUnsupported):
			logging.Debug("Thumbnail unsupported for %s: %v", name, err)
			http.Error(w, "Unsupported image", http.StatusUnsupportedMediaType)
		default:
			logging.Error("Thumbnail failed for %s: %v", name, err)
			http.Error(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write for %s: %v", name, err)
	}
}

// Ingest copies a dropped file into the library. The watcher picks it up
// and the reconciler adds it to the index.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeResult(w, reconciler.Failure(fmt.Errorf("%w: invalid request body: %w", tagstore.ErrValidation, err)))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeResult(w, reconciler.Failure(fmt.Errorf("%w: path is required", tagstore.ErrValidation)))
		return
	}

	name, err := h.library.Ingest(req.Path)
	if err != nil {
		logging.Warn("Ingest %s failed: %v", req.Path, err)
		res := reconciler.Failure(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resultStatus(res))
		writeJSON(w, IngestResponse{Result: res})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, IngestResponse{Result: reconciler.Result{Success: true}, Filename: name})
}
