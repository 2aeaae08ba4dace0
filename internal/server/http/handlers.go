package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/homedisk/internal/errs"
	"github.com/and161185/homedisk/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type whoamiResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type fileEntry struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

type dirEntry struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

type listResponse struct {
	Files []fileEntry `json:"files"`
	Dirs  []dirEntry  `json:"dirs"`
}

var errBadPayload = errors.New("invalid payload")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadPayload
	}
	return nil
}

func (s *Server) badPayload(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errBadPayload.Error()})
}

func authResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errs.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, errs.ErrAlreadyExists):
		return "exists"
	case errors.Is(err, errs.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		s.badPayload(w)
		return
	}
	tk, err := s.auth.Register(r.Context(), req.Username, req.Password)
	s.metrics.AuthEvent("register", authResult(err))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tk.AccessToken, ExpiresAt: tk.ExpiresAt})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		s.badPayload(w)
		return
	}
	tk, err := s.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	s.metrics.AuthEvent("login", authResult(err))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tk.AccessToken, ExpiresAt: tk.ExpiresAt})
}

// requireAuth resolves the bearer token to a user or answers 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			s.metrics.AuthEvent("token", "missing")
			s.writeError(w, r, errs.ErrUnauthorized)
			return
		}
		u, err := s.auth.Authenticate(r.Context(), tok)
		s.metrics.AuthEvent("token", authResult(err))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	writeJSON(w, http.StatusOK, whoamiResponse{ID: u.ID.String(), Username: u.Username})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		s.badPayload(w)
		return
	}
	u, _ := UserFromCtx(r.Context())
	l, err := s.files.List(r.Context(), u, req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(l))
}

func toListResponse(l storage.Listing) listResponse {
	out := listResponse{
		Files: make([]fileEntry, 0, len(l.Files)),
		Dirs:  make([]dirEntry, 0, len(l.Dirs)),
	}
	for _, f := range l.Files {
		out.Files = append(out.Files, fileEntry{Name: f.Name, Size: f.Size, Modified: f.Modified})
	}
	for _, d := range l.Dirs {
		out.Dirs = append(out.Dirs, dirEntry{Name: d.Name, Size: d.Size})
	}
	return out
}

func (s *Server) createDir(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		s.badPayload(w)
		return
	}
	u, _ := UserFromCtx(r.Context())
	if err := s.files.CreateDir(r.Context(), u, req.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"created": true})
}

func (s *Server) deletePath(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		s.badPayload(w)
		return
	}
	u, _ := UserFromCtx(r.Context())
	if err := s.files.Delete(r.Context(), u, req.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
