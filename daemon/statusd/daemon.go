// Package statusd serves the recorder's state over HTTP and pushes route
// and pause events to websocket clients.
package statusd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/catdb/cache"
	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/manager"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
)

// StatusSource reports the live state machine. *manager.Manager is one.
type StatusSource interface {
	Status(ctx context.Context) (manager.Status, error)
}

type StatusDaemon struct {
	Config *params.StatusDaemonConfig

	store       *state.Store
	status      StatusSource
	feeds       *events.Feeds
	routeConfig *params.RouteConfig

	started        time.Time
	melodyInstance *melody.Melody
	recent         *cache.RecentEvents[Broadcast]
	logger         *slog.Logger
}

// NewStatusDaemon serves routes from the store. A nil status source
// leaves /status reporting only the daemon itself, and nil feeds leave
// the websocket with nothing to relay.
func NewStatusDaemon(config *params.StatusDaemonConfig, store *state.Store, status StatusSource, feeds *events.Feeds) *StatusDaemon {
	if config == nil {
		config = params.DefaultStatusDaemonConfig()
	}
	return &StatusDaemon{
		Config:      config,
		store:       store,
		status:      status,
		feeds:       feeds,
		routeConfig: params.DefaultRouteConfig,
		started:     time.Now(),
		recent:      cache.NewRecentEvents[Broadcast](params.CacheRecentEventsTTL),
		logger:      slog.With("d", "statusd"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *StatusDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *StatusDaemon) Serve(ctx context.Context, ln net.Listener) error {
	router := s.NewRouter()
	go s.broadcastEvents(ctx)

	server := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting status daemon", "network", ln.Addr().Network(), "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		_ = s.melodyInstance.Close()
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Stopping status daemon")
	_ = s.melodyInstance.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *StatusDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	apiRoutes := router.NewRoute().Subrouter()
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	authenticated := apiRoutes.NewRoute().Subrouter()
	authenticated.Use(s.tokenAuthenticationMiddleware)

	authenticated.Path("/ws").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	jsonRoutes := authenticated.NewRoute().Subrouter()
	jsonRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	jsonRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	jsonRoutes.Path("/routes").HandlerFunc(s.handleRoutes).Methods(http.MethodGet)
	jsonRoutes.Path("/routes/{id:[0-9]+}").HandlerFunc(s.handleRoute).Methods(http.MethodGet)

	return router
}
