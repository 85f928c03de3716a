package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Messages returned by PUT /v1/prompt and PUT /v1/temperature.
const (
	MessagePromptChanged      = "Prompt changed"
	MessagePromptUnchanged    = "Prompt unchanged"
	MessageTemperatureChanged = "Temperature changed"
)

const maxBodyBytes = 1 << 20

// value is the request and response body of every endpoint.
type value[T any] struct {
	Value   T      `json:"value"`
	Message string `json:"message,omitempty"`
}

// errorBody is written for rejected requests.
type errorBody struct {
	Error string `json:"error"`
}

// Server serves a [Store] over HTTP/JSON:
//
//	GET  /v1/prompt       PUT /v1/prompt       {"value": "..."}
//	GET  /v1/temperature  PUT /v1/temperature  {"value": 0.7}
//	GET  /v1/pause        POST /v1/pause       POST /v1/unpause
//	GET  /v1/speaking     PUT /v1/speaking     {"value": true}
//	GET  /v1/speech       PUT /v1/speech       {"value": "..."}
//
// Every response is {"value": ..., "message": ...} with the current value.
type Server struct {
	store *Store
}

// NewServer returns a [Server] for store.
func NewServer(store *Store) *Server { return &Server{store: store} }

// Register adds the state routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/prompt", s.getPrompt)
	mux.HandleFunc("PUT /v1/prompt", s.putPrompt)
	mux.HandleFunc("GET /v1/temperature", s.getTemperature)
	mux.HandleFunc("PUT /v1/temperature", s.putTemperature)
	mux.HandleFunc("GET /v1/pause", s.getPause)
	mux.HandleFunc("POST /v1/pause", s.pause)
	mux.HandleFunc("POST /v1/unpause", s.unpause)
	mux.HandleFunc("GET /v1/speaking", s.getSpeaking)
	mux.HandleFunc("PUT /v1/speaking", s.putSpeaking)
	mux.HandleFunc("GET /v1/speech", s.getSpeech)
	mux.HandleFunc("PUT /v1/speech", s.putSpeech)
}

func (s *Server) getPrompt(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, value[string]{Value: s.store.Prompt()})
}

func (s *Server) putPrompt(w http.ResponseWriter, r *http.Request) {
	var in value[string]
	if !decode(w, r, &in) {
		return
	}
	msg := MessagePromptUnchanged
	if s.store.SetPrompt(in.Value) {
		msg = MessagePromptChanged
	}
	writeJSON(w, http.StatusOK, value[string]{Value: s.store.Prompt(), Message: msg})
}

func (s *Server) getTemperature(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, value[float64]{Value: s.store.Temperature()})
}

func (s *Server) putTemperature(w http.ResponseWriter, r *http.Request) {
	var in value[float64]
	if !decode(w, r, &in) {
		return
	}
	s.store.SetTemperature(in.Value)
	writeJSON(w, http.StatusOK, value[float64]{Value: s.store.Temperature(), Message: MessageTemperatureChanged})
}

func (s *Server) getPause(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, value[bool]{Value: s.store.Paused()})
}

func (s *Server) pause(w http.ResponseWriter, _ *http.Request) {
	s.store.Pause()
	writeJSON(w, http.StatusOK, value[bool]{Value: s.store.Paused()})
}

func (s *Server) unpause(w http.ResponseWriter, _ *http.Request) {
	s.store.Unpause()
	writeJSON(w, http.StatusOK, value[bool]{Value: s.store.Paused()})
}

func (s *Server) getSpeaking(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, value[bool]{Value: s.store.Speaking()})
}

func (s *Server) putSpeaking(w http.ResponseWriter, r *http.Request) {
	var in value[bool]
	if !decode(w, r, &in) {
		return
	}
	s.store.SetSpeaking(in.Value)
	writeJSON(w, http.StatusOK, value[bool]{Value: s.store.Speaking()})
}

func (s *Server) getSpeech(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, value[string]{Value: s.store.Speech()})
}

func (s *Server) putSpeech(w http.ResponseWriter, r *http.Request) {
	var in value[string]
	if !decode(w, r, &in) {
		return
	}
	s.store.Speak(in.Value)
	writeJSON(w, http.StatusOK, value[string]{Value: s.store.Speech()})
}

// decode reads a JSON body into v, writing a 400 response on failure.
func decode[T any](w http.ResponseWriter, r *http.Request, v *value[T]) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode"}`, http.StatusInternalServerError)
	}
}
