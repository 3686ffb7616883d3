package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jsonwidget.org/internal/audit"
)

type saveRequest struct {
	Title  string          `json:"title"`
	Data   json.RawMessage `json:"data"`
	Schema json.RawMessage `json:"schema"`
}

type renameRequest struct {
	OldTitle string `json:"oldTitle"`
	NewTitle string `json:"newTitle"`
}

type documentResponse struct {
	JSON   json.RawMessage `json:"json"`
	Schema json.RawMessage `json:"schema"`
}

var success = map[string]bool{"success": true}

func (a *API) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if err := a.deps.Documents.Save(r.Context(), currentUser(r), req.Title, req.Data, req.Schema); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventDocumentSaved, zap.String("title", req.Title))
	writeJSON(w, http.StatusOK, success)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := a.deps.Documents.Get(r.Context(), currentUser(r), titleParam(r))
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	resp := documentResponse{JSON: doc.Data, Schema: doc.Schema}
	if len(resp.Schema) == 0 {
		resp.Schema = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Documents.List(r.Context(), currentUser(r))
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if err := a.deps.Documents.Rename(r.Context(), currentUser(r), req.OldTitle, req.NewTitle); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventDocumentRenamed,
		zap.String("title", req.OldTitle), zap.String("new_title", req.NewTitle))
	writeJSON(w, http.StatusOK, success)
}

// handleDelete succeeds whether or not the title existed.
func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)
	removed, err := a.deps.Documents.Delete(r.Context(), currentUser(r), title)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	if removed {
		_ = audit.LogEvent(r.Context(), audit.EventDocumentDeleted, zap.String("title", title))
	}
	writeJSON(w, http.StatusOK, success)
}

// titleParam returns the decoded {title}. chi matches on the escaped path
// when one exists.
func titleParam(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	if r.URL.RawPath == "" {
		return raw
	}
	title, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return title
}
