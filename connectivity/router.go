// Package connectivity routes a named service either to an in-process
// handler or to a remote HTTP endpoint, based on a SQLite routes table that
// is reloaded at runtime.
//
// The pilot and the CLI call the rewrite service by name and never care
// where it runs:
//
//	router := connectivity.New()
//	router.RegisterLocal("proseai_rewrite", rewriteapi.LocalHandler(svc))
//	router.RegisterTransport("http", connectivity.HTTPFactory(connectivity.HTTPOptions{}))
//	go router.Watch(ctx, db, time.Second)
//
//	resp, err := router.Call(ctx, "proseai_rewrite", payload)
//
// Changing the row for proseai_rewrite from "local" to "http" moves the call
// to the remote API on the next reload.
package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/proseai/watch"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint from the route's
// config JSON. The returned close function runs when the route is removed
// or replaced; it may be nil.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

// Strategies understood by the router.
const (
	StrategyLocal = "local"
	StrategyHTTP  = "http"
)

type route struct {
	ServiceName string
	Strategy    string
	Endpoint    string
	Config      json.RawMessage
}

func (rt route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Reads take an RLock, reloads a full Lock.
type Router struct {
	mu            sync.RWMutex
	localHandlers map[string]Handler
	remoteEntries map[string]remoteEntry
	routeSnap     map[string]route
	factories     map[string]TransportFactory
	middleware    []HandlerMiddleware
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMiddleware wraps every dispatched call, local or remote.
func WithMiddleware(mws ...HandlerMiddleware) Option {
	return func(r *Router) { r.middleware = append(r.middleware, mws...) }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		localHandlers: make(map[string]Handler),
		remoteEntries: make(map[string]remoteEntry),
		routeSnap:     make(map[string]route),
		factories:     make(map[string]TransportFactory),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers the in-process handler for service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.localHandlers[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers the factory used for routes whose strategy
// equals protocol.
func (r *Router) RegisterTransport(protocol string, f TransportFactory) {
	r.mu.Lock()
	r.factories[protocol] = f
	r.mu.Unlock()
}

// Call dispatches to the remote handler when the routes table names one,
// otherwise to the local handler. A service with neither is an
// *ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remoteEntries[service]
	localH := r.localHandlers[service]
	snap := r.routeSnap[service]
	mws := r.middleware
	r.mu.RUnlock()

	var h Handler
	switch {
	case hasRemote:
		r.logger.DebugContext(ctx, "connectivity: routing remote",
			"service", service, "strategy", snap.Strategy, "endpoint", snap.Endpoint)
		h = entry.handler
	case snap.Strategy != "" && snap.Strategy != StrategyLocal:
		// The row asks for a remote transport that failed to build. Falling
		// back to local would silently spend local credentials.
		return nil, &ErrRouteUnavailable{Service: service, Strategy: snap.Strategy}
	case localH != nil:
		r.logger.DebugContext(ctx, "connectivity: routing local", "service", service)
		h = localH
	default:
		return nil, &ErrServiceNotFound{Service: service}
	}

	if len(mws) > 0 {
		h = Chain(mws...)(h)
	}
	return h(ctx, payload)
}

// Strategy reports the strategy currently loaded for service, StrategyLocal
// when no row exists.
func (r *Router) Strategy(service string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rt, ok := r.routeSnap[service]; ok {
		return rt.Strategy
	}
	return StrategyLocal
}

// Reload reads the routes table and rebuilds the remote handlers. Routes
// whose (strategy, endpoint, config) did not change keep their handler.
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	newRoutes := make(map[string]route)
	for rows.Next() {
		var rt route
		var cfg string
		if err := rows.Scan(&rt.ServiceName, &rt.Strategy, &rt.Endpoint, &cfg); err != nil {
			return fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfg)
		newRoutes[rt.ServiceName] = rt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("connectivity: rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newEntries := make(map[string]remoteEntry, len(newRoutes))
	for name, rt := range newRoutes {
		if rt.Strategy == StrategyLocal {
			continue
		}
		if old, ok := r.routeSnap[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, ok := r.remoteEntries[name]; ok {
				newEntries[name] = existing
				continue
			}
		}

		factory, ok := r.factories[rt.Strategy]
		if !ok {
			r.logger.Warn("connectivity: no transport factory",
				"service", name, "error", &ErrNoFactory{Service: name, Strategy: rt.Strategy})
			continue
		}
		h, closeFn, err := factory(rt.Endpoint, rt.Config)
		if err != nil {
			r.logger.Error("connectivity: factory failed", "error", &ErrFactoryFailed{
				Service: name, Strategy: rt.Strategy, Endpoint: rt.Endpoint, Cause: err,
			})
			continue
		}
		newEntries[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("connectivity: route built",
			"service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	for name, old := range r.remoteEntries {
		if old.close == nil {
			continue
		}
		_, kept := newEntries[name]
		if !kept || r.routeSnap[name].fingerprint() != newRoutes[name].fingerprint() {
			old.close()
		}
	}

	r.remoteEntries = newEntries
	r.routeSnap = newRoutes
	r.logger.Info("connectivity: routes reloaded", "total", len(newRoutes), "remote", len(newEntries))
	return nil
}

// Watch loads the routes once, then reloads whenever another connection
// commits to db. It blocks until ctx is cancelled.
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	if err := r.Reload(ctx, db); err != nil {
		r.logger.Error("connectivity: initial reload failed", "error", err)
	}
	w := watch.New(db, watch.Options{Interval: interval, Logger: r.logger})
	w.OnChange(ctx, func(ctx context.Context) error { return r.Reload(ctx, db) })
}

// Close shuts down all remote handlers.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.remoteEntries {
		if entry.close != nil {
			entry.close()
		}
	}
	r.remoteEntries = make(map[string]remoteEntry)
	r.routeSnap = make(map[string]route)
	return nil
}
