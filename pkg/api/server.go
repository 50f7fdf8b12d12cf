// Package api assembles the gateway's HTTP surface: the public
// authentication routes, the device trust-token endpoint, and the
// authenticated management and provisioning routers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/api/v1"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/devices"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/iotagent"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/telemetry"
)

// ServerOption configures the server router.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds HTTP middlewares applied to every route.
func WithMiddlewares(middlewares ...func(http.Handler) http.Handler) ServerOption {
	return func(c *serverConfig) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// Deps carries the wired components the routers are built from.
type Deps struct {
	Bridge  *auth.Bridge
	Devices *devices.Manager
	Keyrock *keyrock.Client
	Agent   *iotagent.Client
}

// NewServer creates the gateway router.
//
// Public routes: POST /auth/login, POST /auth/validate, POST /devices/token
// (devices authenticate with their own credential, not a user token),
// GET /health and GET /metrics. Everything else requires a valid local
// token and runs with the caller's session.
func NewServer(deps Deps, opts ...ServerOption) http.Handler {
	cfg := serverConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Mount("/auth", v1.AuthRouter(deps.Bridge))
	r.Mount("/devices", v1.DevicesRouter(deps.Devices, auth.Middleware(deps.Bridge)))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Bridge))
		r.Mount("/users", v1.UsersRouter(deps.Bridge, deps.Keyrock))
		r.Mount("/roles", v1.RolesRouter(deps.Bridge, deps.Keyrock))
		r.Mount("/permissions", v1.PermissionsRouter(deps.Bridge, deps.Keyrock))
		r.Mount("/iot", v1.ProvisioningRouter(deps.Agent))
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
