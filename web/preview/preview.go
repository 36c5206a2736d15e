// Package preview serves an archive directory over HTTP, so it can be checked before it's published.
package preview

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/starshine-sys/archiver/archive"
	"github.com/starshine-sys/archiver/common"
	"go.uber.org/zap"
)

// Server serves the files in Root.
type Server struct {
	Root string
	// Prefix is stripped from request paths, usually "/" + the archive's GitHub repository name.
	Prefix string

	Log *zap.SugaredLogger
}

// New returns a Server for the archive in root.
func New(root, prefix string) *Server {
	return &Server{
		Root:   root,
		Prefix: prefix,
		Log:    common.Log.Named("preview"),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	prefix := "/" + strings.Trim(s.Prefix, "/")
	if prefix == "/" {
		r.Get("/*", s.serve)
		return r
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix+"/", http.StatusFound)
	})
	r.Route(prefix, func(r chi.Router) {
		r.Get("/*", s.serve)
	})
	return r
}

// ListenAndServe serves the archive on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	s.Log.Infof("Serving %v on %v", s.Root, addr)

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving archive")
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t := time.Now()

		next.ServeHTTP(ww, r)

		s.logger().Debugf("%v %v => %v (%v)", r.Method, r.URL.Path, ww.Status(), time.Since(t).Round(time.Microsecond))
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean("/" + chi.URLParam(r, "*"))
	name := filepath.Join(s.Root, filepath.FromSlash(rel))

	fi, err := os.Stat(name)
	switch {
	case err == nil && fi.IsDir():
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}

		if s.file(w, r, filepath.Join(name, "index.html")) {
			return
		}
		if s.markdown(w, filepath.Join(name, archive.HomeIndexName)) {
			return
		}
	case err == nil:
		if strings.HasSuffix(name, ".md") && s.markdown(w, name) {
			return
		}
		http.ServeFile(w, r, name)
		return
	case os.IsNotExist(err):
		// category index URLs have no extension
		if s.file(w, r, name+".html") {
			return
		}
		if s.markdown(w, name+".md") {
			return
		}
	default:
		s.error(w, http.StatusInternalServerError, err)
		return
	}

	s.error(w, http.StatusNotFound, nil)
}

// file serves the file at name if it exists.
func (s *Server) file(w http.ResponseWriter, r *http.Request, name string) bool {
	fi, err := os.Stat(name)
	if err != nil || fi.IsDir() {
		return false
	}

	http.ServeFile(w, r, name)
	return true
}

// markdown renders the Markdown file at name to HTML if it exists.
func (s *Server) markdown(w http.ResponseWriter, name string) bool {
	b, err := os.ReadFile(name)
	if err != nil {
		return false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(archive.RenderHTML(title(string(b)), string(b)))
	if err != nil {
		s.logger().Errorf("Error writing response: %v", err)
	}
	return true
}

// title returns the text of the first level 1 heading in md.
func title(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return "Archive"
}

func (s *Server) error(w http.ResponseWriter, code int, err error) {
	if err == nil {
		http.Error(w, http.StatusText(code), code)
		return
	}

	id := uuid.New()
	s.logger().Errorf("[%s] Error serving file: %v", id, err)
	http.Error(w, http.StatusText(code)+"\nError code: "+id.String(), code)
}

func (s *Server) logger() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.S()
	}
	return s.Log
}
