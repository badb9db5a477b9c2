package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Stored images.
	mux.HandleFunc("GET /uploads/category/{file}", s.handleUpload)

	// Auth.
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.Handle("POST /api/logout", s.withAuth(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/user", s.withAuth(http.HandlerFunc(s.handleCurrentUser)))

	// Object sentences. Updates use POST so multipart uploads work from any client.
	mux.Handle("GET /api/object-sentences", s.withAuth(http.HandlerFunc(s.handleListSentences)))
	mux.Handle("POST /api/object-sentences", s.withAuth(http.HandlerFunc(s.handleCreateSentence)))
	mux.Handle("GET /api/object-sentences/{id}", s.withAuth(http.HandlerFunc(s.handleGetSentence)))
	mux.Handle("POST /api/object-sentences/{id}", s.withAuth(http.HandlerFunc(s.handleUpdateSentence)))
	mux.Handle("DELETE /api/object-sentences/{id}", s.withAuth(http.HandlerFunc(s.handleDeleteSentence)))

	return s.withRequestLogging(s.withRecovery(s.withEnvelopeFallback(mux)))
}
