// Package router assembles the gin engine and the versioned API routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIPrefix is where the billing resources are mounted
const APIPrefix = "/api/v1"

// Resource is the route table of one billing resource, collected before
// it is mounted under the API prefix
type Resource struct {
	prefix string
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewResource starts an empty route table rooted at prefix, e.g. "/clients"
func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

func (r *Resource) add(method, path string, handlers []gin.HandlerFunc) *Resource {
	r.routes = append(r.routes, route{method: method, path: path, handlers: handlers})
	return r
}

func (r *Resource) GET(path string, handlers ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodGet, path, handlers)
}

func (r *Resource) POST(path string, handlers ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodPost, path, handlers)
}

func (r *Resource) PUT(path string, handlers ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodPut, path, handlers)
}

func (r *Resource) DELETE(path string, handlers ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodDelete, path, handlers)
}

// Mount registers every resource under APIPrefix
func Mount(engine *gin.Engine, resources ...*Resource) {
	api := engine.Group(APIPrefix)
	for _, res := range resources {
		group := api.Group(res.prefix)
		for _, rt := range res.routes {
			group.Handle(rt.method, rt.path, rt.handlers...)
		}
	}
}
