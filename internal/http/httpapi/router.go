package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// Options carries the router-level knobs.
type Options struct {
	JWTSecret       string
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static so FileStore asset URLs
	// resolve. Object-store deployments leave it empty.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Log),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.StaticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Method(http.MethodGet, "/static/*", fileServer)
	}
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	// The proxy sets its own permissive CORS headers; it stays outside the
	// origin-restricted group so canvas reads work from any page.
	r.Get("/proxy", app.Proxy)
	r.Head("/proxy", app.Proxy)
	r.Options("/proxy", app.Proxy)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(opts.AllowedOrigins))
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Post("/v1/images/generations", app.ImagesGenerate)
		r.Post("/v1/videos/generations", app.VideosGenerate)
		r.Post("/v1/music/generations", app.MusicGenerate)
		r.Post("/v1/prompts/refine", app.PromptsRefine)

		r.Get("/v1/jobs/{job_id}", app.JobStatus)
		r.Get("/v1/jobs/{job_id}/assets", app.JobAssets)
		r.Get("/v1/jobs/{job_id}/assets/download", app.JobAssetsDownload)

		r.Get("/v1/stats/daily", app.StatsDaily)
	})

	return r
}
