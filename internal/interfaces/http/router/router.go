// Package router assembles the gin engine of the invoicing API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and the middleware that guards all of them.
// Routes registered directly on the engine stay outside that chain.
type Router struct {
	engine     *gin.Engine
	basePath   string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

func NewRouter(engine *gin.Engine, basePath string) *Router {
	return &Router{engine: engine, basePath: basePath}
}

func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar under basePath
func (r *Router) Setup() {
	api := r.engine.Group(r.basePath, r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// ResourceGroup is the route table of one resource, e.g. /invoices
type ResourceGroup struct {
	prefix string
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewResourceGroup(prefix string) *ResourceGroup {
	return &ResourceGroup{prefix: prefix}
}

func (g *ResourceGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

func (g *ResourceGroup) GET(path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Handle(http.MethodGet, path, handlers...)
}

func (g *ResourceGroup) POST(path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Handle(http.MethodPost, path, handlers...)
}

// Status updates accept both verbs
func (g *ResourceGroup) Update(path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Handle(http.MethodPatch, path, handlers...).Handle(http.MethodPut, path, handlers...)
}

func (g *ResourceGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}
