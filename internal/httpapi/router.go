package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the middleware stack and routes. Channel routes are only
// mounted when the channel is enabled.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(Logging(h.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-Ambient-Type", "X-Ambient-Duration"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/ambient", func(r chi.Router) {
			r.Get("/categories", h.Categories)
			r.Get("/preview", h.Preview)
		})
		r.Post("/speeches/{speechId}/ambient-audio", h.GenerateAmbient)
		r.Post("/chapters/{chapterId}/soundtrack/generate", h.SuggestSoundtrack)

		if h.d.Channel != nil && h.d.Player != nil {
			r.Get("/status", h.Status)
			r.Post("/category", h.SetCategory)
			r.Post("/skip", h.Skip)
			r.Post("/autorotate", h.SetAutoRotate)
			r.Post("/config", h.SetConfig)
		}
	})

	r.Get("/uploads/ambient/{name}", h.ServeAsset)

	if h.d.Stream != nil {
		r.Get("/stream", h.d.Stream.ServeHTTP)
	}
	if h.d.Offer != nil {
		r.Post("/offer", h.d.Offer.ServeHTTP)
	}

	return r
}
