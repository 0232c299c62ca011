package portal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/logging"
)

// maxBodyBytes bounds a save request
const maxBodyBytes = 64 << 10

// ParamsResponse is the body of GET /params
type ParamsResponse struct {
	AccessPoint string                  `json:"access_point,omitempty"`
	Running     bool                    `json:"running"`
	Parameters  []coordinator.Parameter `json:"parameters"`
}

// SaveRequest is the body of POST /save
type SaveRequest struct {
	SSID     string            `json:"ssid"`
	Password string            `json:"password"`
	Values   map[string]string `json:"values,omitempty"`
}

// SaveResponse is the body returned by POST /save
type SaveResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (p *Portal) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/params", p.getParams)
	r.Post("/save", p.postSave)
	r.Get("/events", p.streamEvents)
	return r
}

// requestLogger reports every request through the portal logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.LogPortalRequest(r.RemoteAddr, r.Method, r.URL.Path, ww.Status())
	})
}

func (p *Portal) getParams(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	resp := ParamsResponse{
		Running:    p.session != nil,
		Parameters: make([]coordinator.Parameter, len(p.params)),
	}
	copy(resp.Parameters, p.params)
	if p.session != nil {
		resp.AccessPoint = p.session.apName
	}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (p *Portal) postSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SaveResponse{Status: "invalid", Error: "malformed JSON body"})
		return
	}
	if req.SSID == "" {
		writeJSON(w, http.StatusBadRequest, SaveResponse{Status: "invalid", Error: "ssid is required"})
		return
	}

	err := p.submit(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SaveResponse{Status: StatusConnected})
	case errors.Is(err, ErrNoSession):
		writeJSON(w, http.StatusConflict, SaveResponse{Status: StatusClosed, Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, SaveResponse{Status: StatusFailed, Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
