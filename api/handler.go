package api

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/engine"
	"github.com/gridbase/gridbase/utils"
)

var Reset = "\033[0m"
var Red = "\033[31m"
var Green = "\033[32m"

// TokenResolver maps a bearer token to an owner id. Token issuance lives
// outside this service; this is the whole contract.
type TokenResolver interface {
	Resolve(token string) (string, error)
}

// TokenMap is the simplest resolver: a static token→owner table.
type TokenMap map[string]string

func (m TokenMap) Resolve(token string) (string, error) {
	owner, ok := m[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return owner, nil
}

type APIServer struct {
	addr string
	auth TokenResolver

	registry   *engine.Registry
	data       *engine.Data
	aggregates *engine.Aggregator
	sandbox    *engine.Sandbox
	search     *engine.Search
	projects   *engine.Projects

	db      *sql.DB
	docsDir string
	parser  RowSource
}

func NewAPIServer(addr string, conn *sql.DB, docsDir string, auth TokenResolver) *APIServer {
	registry := engine.NewRegistry(conn, docsDir)
	return &APIServer{
		addr:       addr,
		auth:       auth,
		registry:   registry,
		data:       engine.NewData(conn, registry),
		aggregates: engine.NewAggregator(conn, registry),
		sandbox:    engine.NewSandbox(conn, registry),
		search:     engine.NewSearch(conn, registry),
		projects:   engine.NewProjects(conn, registry),
		db:         conn,
		docsDir:    docsDir,
		parser:     CSVSource{},
	}
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (w *wrappedWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}

	w.ResponseWriter.WriteHeader(statusCode)
	w.statusCode = statusCode
	w.headerWritten = true
}

func (s *APIServer) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthCheck).Methods("GET")

	protected := router.NewRoute().Subrouter()
	protected.Use(s.AuthMiddleware)

	protected.HandleFunc("/tables", s.listTables).Methods("GET")
	protected.HandleFunc("/upload", s.upload).Methods("POST")
	protected.HandleFunc("/tables/{table}", s.updateTable).Methods("PATCH")
	protected.HandleFunc("/tables/{table}", s.dropTable).Methods("DELETE")
	protected.HandleFunc("/tables/{table}/data", s.getTableData).Methods("GET")
	protected.HandleFunc("/tables/{table}/rows", s.insertRow).Methods("POST")
	protected.HandleFunc("/tables/{table}/rows/{id}", s.updateCell).Methods("PUT")
	protected.HandleFunc("/tables/{table}/rows/{id}", s.deleteRow).Methods("DELETE")
	protected.HandleFunc("/tables/{table}/columns", s.addColumn).Methods("POST")
	protected.HandleFunc("/tables/{table}/columns/{name}", s.dropColumn).Methods("DELETE")
	protected.HandleFunc("/tables/{table}/aggregates", s.getAggregates).Methods("GET")
	protected.HandleFunc("/tables/{table}/export", s.exportTable).Methods("GET")
	protected.HandleFunc("/search", s.searchTables).Methods("GET")
	protected.HandleFunc("/query/preview", s.previewQuery).Methods("POST")
	protected.HandleFunc("/query/save", s.saveQuery).Methods("POST")
	protected.HandleFunc("/projects", s.listProjects).Methods("GET")
	protected.HandleFunc("/projects", s.createProject).Methods("POST")
	protected.HandleFunc("/projects/{id}", s.updateProject).Methods("PATCH")
	protected.HandleFunc("/projects/{id}", s.deleteProject).Methods("DELETE")

	middlewareChain := MiddlewareChain(
		RequestLoggerMiddleware,
	)

	return middlewareChain(router)
}

func (s *APIServer) Run() error {
	server := http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}
	log.Printf("Server has started %s", s.addr)
	return server.ListenAndServe()
}

type ownerKeyType struct{}

var ownerKey ownerKeyType

func ownerID(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

// AuthMiddleware resolves the bearer token to an owner id and stores it
// on the request context. Every data-path handler reads the owner from
// there; nothing below the API boundary sees the token.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" {
			utils.RespondError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		owner, err := s.auth.Resolve(token)
		if err != nil {
			utils.RespondError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

// respondEngineError maps the engine error taxonomy onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFoundOrForbidden):
		utils.RespondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrValidation):
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrSandboxRejected):
		utils.RespondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, engine.ErrEngine):
		utils.RespondError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		utils.RespondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func RequestLoggerMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &wrappedWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		var ip string
		xForwardedFor := r.Header.Get("X-Forwarded-For")
		if xForwardedFor != "" {
			ips := strings.Split(xForwardedFor, ",")
			if len(ips) > 0 {
				ip = strings.TrimSpace(ips[0])
			}
		}

		next.ServeHTTP(wrapped, r)

		var color string

		if wrapped.statusCode >= 200 && wrapped.statusCode <= 300 {
			color = Green
		} else {
			color = Red
		}

		log.Printf("%s %s %d %s %s %s %s %s %v", color, "[", wrapped.statusCode, r.Method, "]", Reset, ip, r.URL.Path, time.Since(start))
	}
}

type Middleware func(http.Handler) http.HandlerFunc

func MiddlewareChain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next.ServeHTTP
	}
}
