package api

import (
	"net/http"

	"github.com/ashureev/goalpath/internal/tutor"
)

type healthResponse struct {
	Status            string `json:"status"`
	ConnectedSessions int    `json:"connectedSessions"`
	Timestamp         string `json:"timestamp"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	count := 0
	if h.sessions != nil {
		count = h.sessions.Count()
	}
	JSON(w, http.StatusOK, healthResponse{
		Status:            "OK",
		ConnectedSessions: count,
		Timestamp:         tutor.FormatTimestamp(h.now()),
	})
}
