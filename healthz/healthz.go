// Package healthz serves the liveness and readiness probe endpoints.
package healthz

import "net/http"

type Handler struct {
}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("200 OK"))
}
