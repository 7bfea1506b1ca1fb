package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chazu/intcode/store"
)

var log = commonlog.GetLogger("intcode.server")

// Server limits applied when no option overrides them.
const (
	DefaultStepLimit   = 10_000_000
	DefaultMemoryLimit = 1 << 20
	DefaultSessionTTL  = 30 * time.Minute
)

// MachineServer serves the machine service over Connect (HTTP/JSON and
// binary protobuf), gRPC and gRPC-Web on the same port. HTTP/2 is accepted
// without TLS (h2c) so plain gRPC clients can connect.
type MachineServer struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a MachineServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	stepLimit   uint64
	memoryLimit int
	workers     int
	sessionTTL  time.Duration
	store       *store.Store
}

// WithStepLimit bounds the instructions one request may execute.
func WithStepLimit(n uint64) ServerOption {
	return func(c *serverConfig) { c.stepLimit = n }
}

// WithMemoryLimit bounds the memory cells a served program may grow to.
func WithMemoryLimit(cells int) ServerOption {
	return func(c *serverConfig) { c.memoryLimit = cells }
}

// WithWorkers sets how many programs may execute at once.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithSessionTTL sets how long an idle session is kept.
func WithSessionTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.sessionTTL = ttl }
}

// WithStore records every Run call in st.
func WithStore(st *store.Store) ServerOption {
	return func(c *serverConfig) { c.store = st }
}

// New creates a MachineServer.
func New(opts ...ServerOption) *MachineServer {
	cfg := &serverConfig{
		stepLimit:   DefaultStepLimit,
		memoryLimit: DefaultMemoryLimit,
		sessionTTL:  DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker(cfg.workers)
	sessions := NewSessionStore()

	s := &MachineServer{
		worker:   worker,
		sessions: sessions,
		mux:      http.NewServeMux(),
	}

	svc := NewMachineService(worker, sessions, cfg)
	path, handler := NewMachineServiceHandler(svc)
	s.mux.Handle(path, handler)

	// Sweep at least every minute, and several times per TTL
	if cfg.sessionTTL > 0 {
		interval := min(cfg.sessionTTL/4, time.Minute)
		s.stopSweeper = sessions.StartSweeper(max(interval, time.Millisecond), cfg.sessionTTL)
	}

	return s
}

// Handler returns the HTTP handler serving all procedures, accepting both
// HTTP/1.1 and cleartext HTTP/2.
func (s *MachineServer) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// Sessions returns the server's session store.
func (s *MachineServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *MachineServer) ListenAndServe(addr string) error {
	log.Noticef("intcode machine service listening on %s", addr)
	log.Noticef("  Connect (HTTP/JSON): http://%s%s", addr, RunProcedure)
	log.Noticef("  gRPC (h2c):          %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Stop shuts down the server.
func (s *MachineServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
}

// Procedure paths of the machine service.
const (
	MachineServiceName = "intcode.v1.MachineService"

	RunProcedure            = "/" + MachineServiceName + "/Run"
	CreateSessionProcedure  = "/" + MachineServiceName + "/CreateSession"
	DestroySessionProcedure = "/" + MachineServiceName + "/DestroySession"
	StepProcedure           = "/" + MachineServiceName + "/Step"
	ReadProcedure           = "/" + MachineServiceName + "/Read"
	WriteProcedure          = "/" + MachineServiceName + "/Write"
	SnapshotProcedure       = "/" + MachineServiceName + "/Snapshot"
	DisassembleProcedure    = "/" + MachineServiceName + "/Disassemble"
)

// NewMachineServiceHandler builds an HTTP handler for every procedure of svc
// and returns the path to mount it on.
func NewMachineServiceHandler(svc *MachineService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run, opts...))
	mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, svc.CreateSession, opts...))
	mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, svc.DestroySession, opts...))
	mux.Handle(StepProcedure, connect.NewUnaryHandler(StepProcedure, svc.Step, opts...))
	mux.Handle(ReadProcedure, connect.NewUnaryHandler(ReadProcedure, svc.Read, opts...))
	mux.Handle(WriteProcedure, connect.NewUnaryHandler(WriteProcedure, svc.Write, opts...))
	mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, opts...))
	mux.Handle(DisassembleProcedure, connect.NewUnaryHandler(DisassembleProcedure, svc.Disassemble, opts...))
	return "/" + MachineServiceName + "/", mux
}
