package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"giffer/internal/logging"
	"giffer/internal/query"
	"giffer/internal/reconciler"
	"giffer/internal/tagstore"
)

// SetTagsRequest is the body of PUT /api/tags/{filename}.
type SetTagsRequest struct {
	Tags []string `json:"tags"`
}

// GetTags returns the full tag index as an ordered JSON object.
func (h *Handlers) GetTags(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.tags.Snapshot())
}

// SetTags replaces the tags of one tracked file.
func (h *Handlers) SetTags(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	var req SetTagsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeResult(w, reconciler.Failure(fmt.Errorf("%w: invalid request body: %w", tagstore.ErrValidation, err)))
		return
	}

	res := h.tags.SetTags(r.Context(), name, req.Tags)
	if !res.Success {
		logging.Debug("SetTags %s failed: %s", name, res.Error)
	}
	writeResult(w, res)
}

// DeleteFile removes a file from the library and the index.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	res := h.tags.Delete(r.Context(), name)
	if res.Success {
		logging.Info("Deleted %s", name)
	} else {
		logging.Warn("Delete %s failed: %s", name, res.Error)
	}
	writeResult(w, res)
}

// Search returns the entries whose tags contain q, in index order. An empty
// q returns every entry.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	results := query.Filter(h.tags.Snapshot(), term)
	if results == nil {
		results = []tagstore.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, results)
}
