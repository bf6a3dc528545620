package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps the standard mux. Third-party routers stay out of the stack;
// the handlers do their own segment dispatch.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterTagRoutes mounts the tags API. The handler routes everything under
// the prefix itself.
func (r *Router) RegisterTagRoutes(h *TagsHandler) {
	r.Handle(tagRoutePrefix, h.ServeHTTP)
	r.Handle(tagRoutePrefix+"/", h.ServeHTTP)
}

// RegisterHealthRoutes exposes the liveness probe.
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
