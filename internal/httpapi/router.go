package httpapi

import "net/http"

type server struct {
	opt     Options
	metrics *Metrics
}

func newServer(opt Options) *server {
	opt = opt.withDefaults()
	return &server{opt: opt, metrics: NewMetrics(opt.Registry)}
}

// NewMux returns the routes without the observability middleware.
func NewMux(opt Options) *http.ServeMux {
	return newServer(opt).mux()
}

func (s *server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", metricsHandler(s.opt.Registry))
	mux.HandleFunc("POST /api/merge", s.handleMerge)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}
