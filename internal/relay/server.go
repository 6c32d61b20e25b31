package relay

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/tokenstore"
)

//go:embed web
var webFS embed.FS

// ServerOptions configures the sidebar host.
type ServerOptions struct {
	Addr string
	// AllowedOrigins are the page origins accepted for CORS and websocket
	// upgrades. Empty allows only loopback origins.
	AllowedOrigins []string
	// StateDir is watched for token changes made by other testgen processes.
	// Empty disables watching.
	StateDir string
}

// Server serves the sidebar page and relays its websocket frames.
type Server struct {
	relay *Relay
	opts  ServerOptions

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewServer returns a Server for r and installs itself as r's notifier.
func NewServer(r *Relay, opts ServerOptions) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://127.0.0.1:*", "http://localhost:*"}
	}
	s := &Server{relay: r, opts: opts, conns: make(map[*conn]struct{})}
	r.SetNotifier(s.Broadcast)
	return s
}

// Handler returns the router: the page at /, the websocket at /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler)

	r.Get("/ws", s.serveWS)
	r.Get("/api/frameworks", serveFrameworks)

	page, err := fs.Sub(webFS, "web")
	if err != nil {
		panic("relay: embedded page missing: " + err.Error())
	}
	r.Handle("/*", http.FileServer(http.FS(page)))
	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.StateDir != "" {
		go func() {
			err := tokenstore.Watch(ctx, s.opts.StateDir, s.relay.Refresh)
			if err != nil {
				logger.WarnWithFields("watching session state stopped", logger.Fields{"error": err.Error()})
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.InfoWithFields("sidebar listening", logger.Fields{"addr": ln.Addr().String()})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast sends a notification to every connected page.
func (s *Server) Broadcast(resp Response) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.send(resp)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.ws.Close(websocket.StatusGoingAway, "sidebar shutting down")
	}
}

// conn is one page connection. Writes are serialized.
type conn struct {
	ws  *websocket.Conn
	ctx context.Context
	mu  sync.Mutex
}

func (c *conn) send(resp Response) {
	data, err := Encode(resp)
	if err != nil {
		logger.ErrorWithFields("encoding frame failed", logger.Fields{"type": Tag(resp), "error": err.Error()})
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.Write(c.ctx, websocket.MessageText, data); err != nil && c.ctx.Err() == nil {
		logger.DebugWithFields("websocket write failed", logger.Fields{"type": Tag(resp), "error": err.Error()})
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: hostPatterns(s.opts.AllowedOrigins),
	})
	if err != nil {
		logger.WarnWithFields("websocket accept failed", logger.Fields{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &conn{ws: ws, ctx: ctx}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	var wg sync.WaitGroup
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		cancel()
		wg.Wait()
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	c.send(s.relay.AuthState())

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.DebugWithFields("websocket read failed", logger.Fields{"error": err.Error()})
			}
			return
		}

		req, err := Decode(data)
		if err != nil {
			var derr *DecodeError
			switch {
			case errors.As(err, &derr):
				logger.WarnWithFields("malformed frame", logger.Fields{"error": err.Error()})
				c.send(derr.Reply())
			case errors.Is(err, ErrUnknownTag):
				logger.DebugWithFields("ignoring frame", logger.Fields{"error": err.Error()})
			default:
				logger.WarnWithFields("unreadable frame", logger.Fields{"error": err.Error()})
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.send(s.relay.Dispatch(ctx, req))
		}()
	}
}

// hostPatterns strips the scheme from origins, the form websocket.Accept
// matches against.
func hostPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		for _, scheme := range []string{"http://", "https://"} {
			if len(o) > len(scheme) && o[:len(scheme)] == scheme {
				o = o[len(scheme):]
				break
			}
		}
		out = append(out, o)
	}
	return out
}

type frameworksResponse struct {
	Languages  []string            `json:"languages"`
	Frameworks map[string][]string `json:"frameworks"`
}

func serveFrameworks(w http.ResponseWriter, _ *http.Request) {
	resp := frameworksResponse{Languages: chat.Languages, Frameworks: make(map[string][]string)}
	for _, lang := range chat.Languages {
		resp.Frameworks[lang] = chat.Frameworks(lang)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.DebugWithFields("writing frameworks failed", logger.Fields{"error": err.Error()})
	}
}
