package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func newRouter(h *handler, authToken, corsOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(corsOrigins))

	// Unauthenticated.
	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(authToken))

		r.Post("/upload", h.upload)

		r.Get("/documents", h.listDocuments)
		r.Post("/documents/refresh", h.refreshAll)
		r.Get("/documents/{id}", h.getDocument)
		r.Delete("/documents/{id}", h.deleteDocument)
		r.Get("/documents/{id}/segments", h.documentSegments)
		r.Post("/documents/{id}/refresh", h.refreshDocument)
		r.Get("/documents/{id}/notes", h.getNotes)
		r.Put("/documents/{id}/notes", h.saveNotes)
		r.Get("/documents/{id}/chat/logs", h.documentChatLogs)
		r.Delete("/documents/{id}/chat/logs", h.deleteDocumentChatLogs)

		r.Post("/classify", h.classify)
		r.Post("/segment", h.segment)

		r.Post("/retrieve", h.retrieveGraph)
		r.Post("/retrieve/flat", h.retrieveFlat)
		r.Post("/mindmap", h.mindMap)

		r.Post("/chat", h.chat)
		r.Get("/chat/logs", h.chatLogs)

		r.Get("/citations", h.citations)
		r.Get("/stats", h.stats)

		r.Post("/registry/reload", h.reloadRegistry)
		r.Get("/registry/entries", h.registryEntries)
		r.Put("/registry/entries", h.putRegistryEntry)
		r.Delete("/registry/entries/{alias}", h.deleteRegistryEntry)
	})

	return r
}
