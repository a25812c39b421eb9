package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/notify-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/notify-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	AllowedOrigins []string
	EmitKey        string
}

func NewRouter(h *Handler, wsServer *ws.Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint, kept off the logging wrapper so the upgrade can hijack
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(gr chi.Router) {
		gr.Use(httpmw.RequestLogger)

		gr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		gr.Handle("/metrics", promhttp.Handler())

		gr.Route("/notify", func(nr chi.Router) {
			nr.Use(httpmw.EmitKey(opts.EmitKey))
			nr.Use(middlewareChi.Timeout(10 * time.Second))

			nr.Post("/users/{userID}", h.NotifyUser)
			nr.Post("/users/{userID}/like-count", h.LikeCount)
			nr.Post("/groups/{group}", h.NotifyGroup)
			nr.Get("/groups/{group}", h.GetGroup)
		})
	})

	return r
}
