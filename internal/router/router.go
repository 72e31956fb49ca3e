package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/config"
	"github.com/tabletrack/api/internal/handler"
	"github.com/tabletrack/api/internal/middleware"
	"github.com/tabletrack/api/internal/service"
	"github.com/tabletrack/api/internal/ws"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Registry *service.Registry
	Orders   *service.Service
	Hub      *ws.Hub
	Log      *logrus.Entry
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(d.Registry.Users, d.Config.JWTSecret, d.Log)
	authHandler.RegisterRoutes(r)

	r.Get("/ws/branches/{bid}", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(d.Hub, d.Config.JWTSecret, d.Log, w, req)
	})

	orderHandler := handler.NewOrderHandler(d.Orders, d.Registry, d.Log)
	tableHandler := handler.NewTableHandler(d.Registry, d.Config.TableBadgeCap, d.Log)
	reportHandler := handler.NewReportHandler(d.Registry, d.Log)

	r.Route("/branches/{bid}", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Config.JWTSecret))
		r.Use(middleware.RequireBranch)

		r.Route("/orders", orderHandler.RegisterRoutes)
		r.Route("/tables", tableHandler.RegisterRoutes)
		r.Route("/reports", reportHandler.RegisterRoutes)
	})

	return r
}
