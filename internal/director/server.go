package director

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/distmem/internal/direrr"
	"github.com/dreamware/distmem/internal/wire"
)

// RegisterHook is supplied by cmd/director to push the updated Directory out to
// every known Shard whenever a new one checks in (TagDirectory). Kept as
// a callback rather than a hard dependency so this package doesn't need
// to know about clusterproto broadcast mechanics.
type RegisterHook func(rank int, addr string)

// Server is the Director's inbound HTTP surface: a single /rpc endpoint
// that accepts TagRegister (a Shard announcing itself) and TagReduce (the
// final accumulator of a reduce chain), plus /health and /metrics.
type Server struct {
	d    *Director
	hook RegisterHook
}

// NewServer wraps d. hook, if non-nil, runs after every successful
// registration (e.g. to broadcast the directory to all Shards).
func NewServer(d *Director, hook RegisterHook) *Server {
	return &Server{d: d, hook: hook}
}

// Handler returns the http.Handler to mount at the Director's listen
// address.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var env wire.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch env.Tag {
	case wire.TagRegister:
		s.handleRegister(w, env)
	case wire.TagReduce:
		s.handleReduceResult(w, env)
	default:
		http.Error(w, direrr.New(direrr.UnknownTag, "director: unexpected tag %s on /rpc", env.Tag).Error(), http.StatusBadRequest)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, env wire.Envelope) {
	var req wire.RegisterRequest
	if err := env.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.d.RegisterShard(req.Rank, req.Addr)
	if s.hook != nil {
		s.hook(req.Rank, req.Addr)
	}

	reply, _ := wire.Encode(0, wire.TagRegister, struct{}{})
	json.NewEncoder(w).Encode(reply)
}

func (s *Server) handleReduceResult(w http.ResponseWriter, env wire.Envelope) {
	var req wire.ReduceReply
	if err := env.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.d.DeliverReduceResult(req.Acc)

	reply, _ := wire.Encode(0, wire.TagReduce, struct{}{})
	json.NewEncoder(w).Encode(reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"shards":     s.d.Directory().Len(),
		"load_table": s.d.load.Snapshot(),
	})
}
