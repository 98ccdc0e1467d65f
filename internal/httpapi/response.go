// Package httpapi implements the HTTP control plane (§6): live MJPEG
// streaming, snapshot/thumbnail capture, stream and recording control,
// schedule CRUD, transfer management, the operator event feed, and the
// remote-agent protocol under /local-client. Routing is go-chi/chi, in
// the teacher's handler-per-concern style.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates err to the stable {error} shape with the status
// from apperrors.HTTPStatus; writeErrorStatus takes an explicit status.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
