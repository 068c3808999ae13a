// Package status serves the operational HTTP surface of a grid node:
// health, live caches, topology state and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharedcode/grid"
)

// TopologyChanger is implemented by exchange managers that can be asked to
// run an exchange round.
type TopologyChanger interface {
	OnTopologyChanged(ctx context.Context, topVer grid.TopologyVersion) error
}

type cacheView struct {
	ID                int32                `json:"id"`
	Name              string               `json:"name"`
	System            bool                 `json:"system"`
	DeploymentEnabled bool                 `json:"deployment_enabled"`
	Store             grid.StoreDescriptor `json:"store"`
}

func toView(c *grid.CacheContext) cacheView {
	return cacheView{
		ID:                c.ID,
		Name:              c.Name,
		System:            c.System,
		DeploymentEnabled: c.DeploymentEnabled,
		Store:             c.Store,
	}
}

type handlers struct {
	sc *grid.SharedContext
}

func (h handlers) health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"node":    h.sc.NodeID().String(),
		"version": grid.Version,
	})
}

func (h handlers) caches(c *gin.Context) {
	cs := h.sc.CacheContexts()
	vs := make([]cacheView, 0, len(cs))
	for _, cc := range cs {
		vs = append(vs, toView(cc))
	}
	slices.SortFunc(vs, func(a, b cacheView) int { return strings.Compare(a.Name, b.Name) })
	c.IndentedJSON(http.StatusOK, vs)
}

func (h handlers) cacheByName(c *gin.Context) {
	name := c.Param("name")
	cc, ok := h.sc.CacheContext(grid.CacheID(name))
	if !ok || cc.Name != name {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("cache %s is not started", name)})
		return
	}
	c.IndentedJSON(http.StatusOK, toView(cc))
}

func (h handlers) topology(c *gin.Context) {
	var names []string
	for _, m := range h.sc.Managers() {
		names = append(names, m.Name())
	}
	ready := grid.NoTopologyVersion
	if ex := h.sc.Exchange(); ex != nil {
		ready = ex.ReadyTopologyVersion()
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"ready":                    ready,
		"managers":                 names,
		"preload_exchange_timeout": h.sc.PreloadExchangeTimeout().String(),
	})
}

func (h handlers) changeTopology(c *gin.Context) {
	var v grid.TopologyVersion
	if err := c.ShouldBindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid topology version, error: %v", err)})
		return
	}
	tc, ok := h.sc.Exchange().(TopologyChanger)
	if !ok {
		c.IndentedJSON(http.StatusNotImplemented, gin.H{"message": "exchange manager does not run exchanges on request"})
		return
	}
	if err := tc.OnTopologyChanged(c.Request.Context(), v); err != nil {
		c.IndentedJSON(http.StatusConflict, gin.H{"message": fmt.Sprintf("exchange to %v failed, error: %v", v, err)})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"ready": v})
}

func (h handlers) txMetrics(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, h.sc.TxMetrics().Snapshot())
}

// NewRouter builds the gin engine serving sc. Metrics are gathered from
// gatherer; nil uses the default Prometheus registry.
func NewRouter(sc *grid.SharedContext, gatherer prometheus.Gatherer) (*gin.Engine, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := handlers{sc: sc}

	reg := NewRegistry()
	for _, m := range []RestMethod{
		{Verb: GET, Path: "/caches", Handler: h.caches},
		{Verb: GET, Path: "/caches/:name", Handler: h.cacheByName},
		{Verb: GET, Path: "/topology", Handler: h.topology},
		{Verb: POST, Path: "/topology", Handler: h.changeTopology},
		{Verb: GET, Path: "/tx/metrics", Handler: h.txMetrics},
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	reg.mount(router.Group("/api/v1"))
	return router, nil
}

// Server runs the status router on a TCP address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and starts serving handler in the background.
func Listen(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status listen on %s: %w", addr, err)
	}
	s := &Server{srv: &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}, ln: ln}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			grid.Logger().Error("status server stopped", "error", err)
		}
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
