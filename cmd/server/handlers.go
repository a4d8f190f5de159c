package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brunobiangulo/lexgraph"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/graph"
	"github.com/brunobiangulo/lexgraph/store"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 200

	maxCitationLimit = 500
)

type handler struct {
	engine    lexgraph.Engine
	uploadDir string
	maxUpload int64
}

func newHandler(e lexgraph.Engine, uploadDir string, maxUpload int64) *handler {
	return &handler{engine: e, uploadDir: uploadDir, maxUpload: maxUpload}
}

// GET /health
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/upload
// Multipart form with a "file" field, plus optional "title", "family" and
// "force" fields. Uploaded files are kept under the upload directory so
// refresh can re-read them.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field in multipart form")
		return
	}
	defer file.Close()

	safeName := filepath.Base(filepath.Clean(header.Filename))
	if safeName == "." || safeName == string(filepath.Separator) || strings.Contains(safeName, "..") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	var opts []lexgraph.IngestOption
	if title := r.FormValue("title"); title != "" {
		opts = append(opts, lexgraph.WithTitle(title))
	} else {
		opts = append(opts, lexgraph.WithTitle(strings.TrimSuffix(safeName, filepath.Ext(safeName))))
	}
	if fam := r.FormValue("family"); fam != "" {
		f := classify.Family(fam)
		if !f.Valid() {
			writeError(w, http.StatusBadRequest, "unknown family")
			return
		}
		opts = append(opts, lexgraph.WithFamily(f))
	}
	if force, _ := strconv.ParseBool(r.FormValue("force")); force {
		opts = append(opts, lexgraph.WithForceReparse())
	}

	dstPath := filepath.Join(h.uploadDir, uuid.NewString()+"-"+safeName)
	dst, err := os.Create(dstPath)
	if err != nil {
		slog.Error("upload: create file", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		slog.Error("upload: save file", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	dst.Close()

	id, err := h.engine.Ingest(r.Context(), dstPath, opts...)
	if err != nil {
		// Parse failures keep a failed document pointing at the file.
		if errors.Is(err, lexgraph.ErrUnsupportedFormat) {
			os.Remove(dstPath)
		}
		writeEngineError(w, "upload", err)
		return
	}

	doc, err := h.engine.GetDocument(r.Context(), id)
	if err != nil {
		writeEngineError(w, "upload", err)
		return
	}
	// A duplicate upload resolves to the document already stored.
	if doc.Path != dstPath {
		os.Remove(dstPath)
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(*doc))
}

// GET /api/documents
func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeEngineError(w, "list documents", err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// GET /api/documents/{id}
func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		documentResponse
		Text string `json:"text"`
	}{toDocumentResponse(*doc), doc.Text})
}

// DELETE /api/documents/{id}
func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, "delete document", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /api/documents/{id}/segments?maxPreviewChars=N
func (h *handler) documentSegments(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("maxPreviewChars"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "maxPreviewChars must be an integer")
			return
		}
	}
	res, err := h.engine.PreviewSegments(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		writeEngineError(w, "segments", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/documents/{id}/refresh
func (h *handler) refreshDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	changed, err := h.engine.Update(r.Context(), id)
	if err != nil {
		writeEngineError(w, "refresh document", err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResult{DocumentID: id, Changed: changed})
}

// POST /api/documents/refresh
func (h *handler) refreshAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.engine.UpdateAll(r.Context())
	if err != nil {
		writeEngineError(w, "refresh all", err)
		return
	}
	out := make([]refreshResult, len(results))
	for i, res := range results {
		out[i] = refreshResult{DocumentID: res.DocumentID, Path: res.Path, Changed: res.Changed}
		if res.Error != nil {
			out[i].Error = res.Error.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// POST /api/classify
func (h *handler) classify(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeValid(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ClassifyDocument(req.Title, req.Text))
}

// POST /api/segment
func (h *handler) segment(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = "doc"
	}
	writeJSON(w, http.StatusOK, h.engine.SegmentDocument(req.DocumentID, req.Title, req.Text))
}

// POST /api/retrieve
func (h *handler) retrieveGraph(w http.ResponseWriter, r *http.Request) {
	var req graphRetrieveRequest
	if !decodeValid(w, r, &req) {
		return
	}
	res, err := h.engine.RetrieveGraph(r.Context(), req.toRetrieval())
	if err != nil {
		writeEngineError(w, "retrieve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/retrieve/flat
func (h *handler) retrieveFlat(w http.ResponseWriter, r *http.Request) {
	var req flatRetrieveRequest
	if !decodeValid(w, r, &req) {
		return
	}
	res, err := h.engine.RetrieveFlat(r.Context(), req.toRetrieval())
	if err != nil {
		writeEngineError(w, "retrieve flat", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/chat
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ans, err := h.engine.Ask(r.Context(), req.Question, req.options()...)
	if err != nil {
		writeEngineError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// GET /api/chat/logs?limit=N
func (h *handler) chatLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)
	logs, err := h.engine.RecentQueries(r.Context(), limit)
	if err != nil {
		writeEngineError(w, "chat logs", err)
		return
	}
	if logs == nil {
		logs = []store.QueryLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// POST /api/registry/reload
func (h *handler) reloadRegistry(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ReloadRegistry(r.Context()); err != nil {
		writeEngineError(w, "registry reload", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// GET /api/documents/{id}/notes
func (h *handler) getNotes(w http.ResponseWriter, r *http.Request) {
	note, err := h.engine.Notes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "notes", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PUT /api/documents/{id}/notes
func (h *handler) saveNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeValid(w, r, &req) {
		return
	}
	note, err := h.engine.SaveNotes(r.Context(), chi.URLParam(r, "id"), *req.Content)
	if err != nil {
		writeEngineError(w, "save notes", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GET /api/documents/{id}/chat/logs?limit=&offset=
func (h *handler) documentChatLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	offset = max(offset, 0)

	logs, err := h.engine.DocumentQueries(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeEngineError(w, "document chat logs", err)
		return
	}
	if logs == nil {
		logs = []store.QueryLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "limit": limit, "offset": offset})
}

// DELETE /api/documents/{id}/chat/logs
func (h *handler) deleteDocumentChatLogs(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.DeleteDocumentQueries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "delete chat logs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// POST /api/mindmap
func (h *handler) mindMap(w http.ResponseWriter, r *http.Request) {
	var req mindMapRequest
	if !decodeValid(w, r, &req) {
		return
	}
	root, err := h.engine.MindMap(r.Context(), req.DocumentIDs)
	if err != nil {
		writeEngineError(w, "mind map", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mindmap": root})
}

// GET /api/registry/entries
func (h *handler) registryEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.RegistryEntries(r.Context())
	if err != nil {
		writeEngineError(w, "registry entries", err)
		return
	}
	if entries == nil {
		entries = []store.RegistryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// PUT /api/registry/entries
func (h *handler) putRegistryEntry(w http.ResponseWriter, r *http.Request) {
	var req registryEntryRequest
	if !decodeValid(w, r, &req) {
		return
	}
	entry := store.RegistryEntry{Alias: req.Alias, Name: req.Name, Sector: req.Sector}
	if err := h.engine.PutRegistryEntry(r.Context(), entry); err != nil {
		writeEngineError(w, "registry put", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DELETE /api/registry/entries/{alias}
func (h *handler) deleteRegistryEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRegistryEntry(r.Context(), chi.URLParam(r, "alias")); err != nil {
		writeEngineError(w, "registry delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/citations?ref=...&limit=...
// Lists the stored edges pointing at a reference, across documents.
func (h *handler) citations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = min(max(limit, 0), maxCitationLimit)
	edges, err := h.engine.Citing(r.Context(), r.URL.Query().Get("ref"), limit)
	if err != nil {
		writeEngineError(w, "citations", err)
		return
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

// GET /api/stats
func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func toDocumentResponse(d store.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Path:         d.Path,
		Format:       d.Format,
		DetectedType: d.DetectedType,
		TypeHuman:    classify.Family(d.DetectedType).Human(),
		Status:       d.Status,
		Segments:     d.Segments,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// decodeValid decodes a JSON body into v and validates it. It writes a 400
// and returns false on failure.
func decodeValid(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeEngineError maps engine sentinels to status codes. Provider and
// internal details are logged, never returned.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, lexgraph.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, lexgraph.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, lexgraph.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), lexgraph.ErrInvalidInput.Error()+": "))
	case errors.Is(err, lexgraph.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file format")
	case errors.Is(err, lexgraph.ErrNoSegments):
		writeError(w, http.StatusUnprocessableEntity, "document has no extractable text")
	case errors.Is(err, lexgraph.ErrParsingFailed):
		writeError(w, http.StatusUnprocessableEntity, "document could not be parsed")
	case errors.Is(err, lexgraph.ErrTimeout):
		slog.Warn(op+": timed out", "error", err)
		writeError(w, http.StatusGatewayTimeout, "request timed out, retry later")
	case errors.Is(err, lexgraph.ErrEmbeddingFailed), errors.Is(err, lexgraph.ErrCompletionFailed):
		slog.Error(op+": provider failed", "error", err)
		writeError(w, http.StatusBadGateway, "model provider unavailable")
	default:
		slog.Error(op+": failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("http: json encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
