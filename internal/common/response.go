package common

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Envelope is the shape of every JSON body the API writes.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Envelope{Success: false, Error: message})
}

func RespondWithData(w http.ResponseWriter, code int, data interface{}) {
	RespondWithJSON(w, code, Envelope{Success: true, Data: data})
}

// RespondWithServiceError maps err onto a status and a safe message. Server-side
// failures are logged with their full chain.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	status := HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	RespondWithError(w, status, PublicMessage(err))
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
