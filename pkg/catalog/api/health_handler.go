package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// HealthResponse reports that the API process is up
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health answers liveness checks
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "OK", Message: "Exam papers catalog API is running"})
}
