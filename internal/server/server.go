// Package server serves a folio site over HTTP: rendered pages in dev mode,
// the built output directory in serve mode, plus the live reload socket,
// metrics and source assets.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/websocket"
)

// Internal endpoints, relative to the base URL.
const (
	HealthPath  = "/__folio/health"
	MetricsPath = "/__folio/metrics"
)

// Renderer renders the page at route into w. found is false when no page
// owns the route.
type Renderer interface {
	RenderRoute(ctx context.Context, w io.Writer, route string) (found bool, err error)
}

// Mount serves files of a directory under a URL prefix.
type Mount struct {
	// Prefix relative to the base URL, e.g. "/_assets/".
	Prefix string
	Dir    string
}

// Options configures a Server.
type Options struct {
	Addr    string
	BaseURL string
	Fs      afero.Fs
	// Pages renders routes on demand. Nil serves Static only.
	Pages Renderer
	// Static is served after Pages, with "/" mapped to index.html.
	Static string
	Mounts []Mount
	// Hub and HubPath enable the live reload socket.
	Hub     *websocket.Hub
	HubPath string
	Metrics http.Handler
	Open    bool
	Logger  logging.Logger
}

// Server is the dev and preview HTTP server.
type Server struct {
	opts   Options
	logger logging.Logger

	serverMutex sync.RWMutex
	httpServer  *http.Server
}

// New returns a server for opts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	opts.BaseURL = paths.NormalizeBase(opts.BaseURL)
	return &Server{opts: opts, logger: opts.Logger.WithComponent("server")}
}

// Handler returns the routing handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	base := s.opts.BaseURL

	mux.HandleFunc(paths.WithBase(base, HealthPath), s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle(paths.WithBase(base, MetricsPath), s.opts.Metrics)
	}
	if s.opts.Hub != nil && s.opts.HubPath != "" {
		mux.Handle(paths.WithBase(base, s.opts.HubPath), s.opts.Hub)
	}
	for _, m := range s.opts.Mounts {
		prefix := paths.EnsureTrailingSlash(paths.WithBase(base, m.Prefix))
		fileServer := http.FileServer(afero.NewHttpFs(afero.NewBasePathFs(s.opts.Fs, m.Dir)))
		mux.Handle(prefix, http.StripPrefix(strings.TrimSuffix(prefix, "/"), fileServer))
	}
	mux.HandleFunc(base, s.handleSite)
	if base != "/" {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, base, http.StatusFound)
		})
	}

	return s.addMiddleware(mux)
}

// responseHeaders are set on every response. Browsers must revalidate
// everything since sources change under the dev server.
var responseHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "SAMEORIGIN",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Cache-Control":          "no-cache",
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		for k, v := range responseHeaders {
			w.Header().Set(k, v)
		}
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	clients := 0
	if s.opts.Hub != nil {
		clients = s.opts.Hub.Clients()
	}
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, clients)
}

// handleSite serves pages under the base URL: rendered routes first, then
// static files, then the not-found page.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	route := "/" + strings.TrimPrefix(r.URL.Path, s.opts.BaseURL)

	if s.opts.Pages != nil {
		for _, candidate := range candidates(route) {
			if s.render(w, r, candidate, http.StatusOK) {
				return
			}
		}
	}

	if s.opts.Static != "" && s.serveStatic(w, r, route) {
		return
	}

	s.notFound(w, r)
}

// candidates lists the routes a request path may refer to.
func candidates(route string) []string {
	encoded := paths.EncodeRoute(route)
	out := []string{encoded}
	switch {
	case strings.HasSuffix(encoded, "/"):
		out = append(out, encoded+"index.html")
	case path.Ext(encoded) == "":
		out = append(out, encoded+".html", encoded+"/")
	case strings.HasSuffix(encoded, "/index.html"):
		out = append(out, strings.TrimSuffix(encoded, "index.html"))
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, route string, status int) bool {
	var buf bytes.Buffer
	found, err := s.opts.Pages.RenderRoute(r.Context(), &buf, route)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to render page", "route", route)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return true
	}
	if !found {
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
	return true
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, route string) bool {
	name := paths.OutputFile(route)
	if path.Ext(route) == "" && !strings.HasSuffix(route, "/") {
		if ok, _ := afero.Exists(s.opts.Fs, filepath.Join(s.opts.Static, name+".html")); ok {
			name += ".html"
		}
	}
	full := filepath.Join(s.opts.Static, name)
	if _, err := paths.Rel(s.opts.Static, full); err != nil {
		return false
	}
	info, err := s.opts.Fs.Stat(full)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := s.opts.Fs.Open(full)
	if err != nil {
		return false
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pages != nil && s.render(w, r, page.NotFoundRoute, http.StatusNotFound) {
		return
	}
	if s.opts.Static != "" {
		content, err := afero.ReadFile(s.opts.Fs, filepath.Join(s.opts.Static, "404.html"))
		if err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write(content)
			return
		}
	}
	http.NotFound(w, r)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	url := "http://" + s.opts.Addr + s.opts.BaseURL
	s.logger.Info(ctx, "Server listening", "url", url)
	if s.opts.Open {
		go s.openBrowser(url)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server, giving open requests five seconds to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Hub != nil {
		s.opts.Hub.Shutdown()
	}
	s.serverMutex.RLock()
	server := s.httpServer
	s.serverMutex.RUnlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func (s *Server) openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to open browser")
	}
}
