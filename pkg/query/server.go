// Package query serves read-only JSON projections of the permission state
// over HTTP.
//
// Routes:
//
//	GET /groups
//	GET /groups/{name}
//	GET /groups/{name}/users
//	GET /users
//	GET /users/{publicKey}
//	GET /users/{publicKey}/groups
//	GET /configurations
//
// List routes are paginated with ?page= (1-based) and ?limit= (at most
// 100) and answer {"meta": ..., "data": [...]}.
package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/ledger"
)

// Pagination limits.
const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Config configures the query handler.
type Config struct {
	Settings *config.Snapshot
	Groups   cache.Groups
	Accounts account.Index

	// LoggerFactory is optional.
	LoggerFactory logging.LoggerFactory
}

// Meta describes a page of results.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Count      int `json:"count"`
	PageCount  int `json:"pageCount"`
	TotalCount int `json:"totalCount"`
}

type listResponse struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type itemResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

var errBadPage = errors.New("page and limit must be positive integers")

type server struct {
	p   *Projections
	log logging.LeveledLogger
}

// NewHandler returns the router serving the query routes.
func NewHandler(cfg Config) http.Handler {
	s := &server{p: NewProjections(cfg.Settings, cfg.Groups, cfg.Accounts)}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("query")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/groups", s.listGroups)
	r.Get("/groups/{name}", s.getGroup)
	r.Get("/groups/{name}/users", s.listGroupUsers)
	r.Get("/users", s.listUsers)
	r.Get("/users/{publicKey}", s.getUser)
	r.Get("/users/{publicKey}/groups", s.listUserGroups)
	r.Get("/configurations", s.getConfigurations)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "route not found")
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.log != nil {
			s.log.Tracef("%s %s", r.Method, r.URL.RequestURI())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) listGroups(w http.ResponseWriter, r *http.Request) {
	writePage(s, w, r, s.p.Groups())
}

func (s *server) getGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, ok := s.p.Group(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	s.writeJSON(w, http.StatusOK, itemResponse{Data: g})
}

func (s *server) listGroupUsers(w http.ResponseWriter, r *http.Request) {
	users, ok := s.p.GroupUsers(chi.URLParam(r, "name"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	writePage(s, w, r, users)
}

func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	writePage(s, w, r, s.p.Users())
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.publicKeyParam(w, r)
	if !ok {
		return
	}
	u, ok := s.p.User(pk)
	if !ok {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.writeJSON(w, http.StatusOK, itemResponse{Data: u})
}

func (s *server) listUserGroups(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.publicKeyParam(w, r)
	if !ok {
		return
	}
	groups, ok := s.p.UserGroups(pk)
	if !ok {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writePage(s, w, r, groups)
}

func (s *server) getConfigurations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, itemResponse{Data: s.p.Configurations()})
}

func (s *server) publicKeyParam(w http.ResponseWriter, r *http.Request) (ledger.PublicKey, bool) {
	pk, err := ledger.ParsePublicKey(chi.URLParam(r, "publicKey"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid public key")
		return ledger.PublicKey{}, false
	}
	return pk, true
}

// parsePage reads ?page= and ?limit=. Limits above MaxLimit are clamped.
func parsePage(r *http.Request) (page, limit int, err error) {
	page, limit = 1, DefaultLimit
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, errBadPage
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errBadPage
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, nil
}

func writePage[T any](s *server, w http.ResponseWriter, r *http.Request, items []T) {
	page, limit, err := parsePage(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Compare in page units first; (page-1)*limit can overflow.
	total := len(items)
	start := total
	if page-1 < (total+limit-1)/limit {
		start = (page - 1) * limit
	}
	end := min(start+limit, total)
	data := items[start:end]

	s.writeJSON(w, http.StatusOK, listResponse{
		Meta: Meta{
			Page:       page,
			Limit:      limit,
			Count:      len(data),
			PageCount:  (total + limit - 1) / limit,
			TotalCount: total,
		},
		Data: data,
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.log != nil {
		s.log.Debugf("write response: %v", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}
