package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registers the authenticated API routes on r. Authentication is
// expected to be installed by the caller.
func Mount(r chi.Router, tasks *TaskHandler, profiles *ProfileHandler) {
	r.Post("/upload", tasks.Upload)
	r.Get("/status/{id}", tasks.Status)
	r.Get("/result/{id}", tasks.Result)
	r.Get("/history", tasks.History)
	r.Post("/cancel/{id}", tasks.Cancel)
	r.Get("/profile", profiles.Get)
	r.Put("/profile", profiles.Update)
}

// NotFound answers unknown routes with a JSON body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}
