// Package router wires handlers to paths and attaches each route's access
// policy.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/librov/internal/handler"
	"github.com/iliyamo/librov/internal/middleware"
	"github.com/iliyamo/librov/internal/policy"
)

// Deps carries everything the routes need.  Cache and RateLimit may be
// nil; the routes then run uncached and unthrottled.
type Deps struct {
	JWTSecret     string
	DB            handler.Pinger
	Cache         *middleware.ResponseCache
	RateLimit     echo.MiddlewareFunc
	Auth          *handler.AuthHandler
	Books         *handler.BookHandler
	Transactions  *handler.TransactionHandler
	Reviews       *handler.ReviewHandler
	Requests      *handler.RequestHandler
	Notifications *handler.NotificationHandler
	Profile       *handler.ProfileHandler
}

// Register mounts the API on e.  Paths are accepted with or without a
// trailing slash.
func Register(e *echo.Echo, d Deps) {
	e.Pre(echomw.RemoveTrailingSlash())
	e.GET("/healthz", handler.Health(d.DB))

	e.Use(middleware.JWTAuth(d.JWTSecret))
	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	registerAuth(e, d.Auth)
	registerCatalog(e, d)
	registerCirculation(e, d)
	registerInbox(e, d)
}

func registerAuth(e *echo.Echo, a *handler.AuthHandler) {
	open := middleware.Enforce(policy.Open)
	e.POST("/register", a.Register, open)
	e.POST("/token", a.Token, open)
	e.POST("/token/refresh", a.Refresh, open)
}

// registerCatalog mounts books and reviews.  Writes to either change what
// GET /books returns (copies, average rating), so they purge the cache.
func registerCatalog(e *echo.Echo, d Deps) {
	cached := d.Cache.Middleware(middleware.NamespaceBooks)
	purge := d.Cache.PurgeAfter(middleware.NamespaceBooks)

	b := e.Group("/books", middleware.Enforce(policy.StaffGatedWrite), purge)
	b.GET("", d.Books.List, cached)
	b.GET("/:id", d.Books.Get, cached)
	b.POST("", d.Books.Create)
	b.PUT("/:id", d.Books.Update)
	b.PATCH("/:id", d.Books.Update)
	b.DELETE("/:id", d.Books.Delete)

	r := e.Group("/reviews", middleware.Enforce(policy.AuthorOrStaff), purge)
	r.GET("", d.Reviews.List)
	r.GET("/:id", d.Reviews.Get)
	r.POST("", d.Reviews.Create)
	r.PUT("/:id", d.Reviews.Update)
	r.PATCH("/:id", d.Reviews.Update)
	r.DELETE("/:id", d.Reviews.Delete)
}

// registerCirculation mounts checkout/return and member book requests.
func registerCirculation(e *echo.Echo, d Deps) {
	t := e.Group("/transactions",
		middleware.Enforce(policy.AuthenticatedOnly),
		d.Cache.PurgeAfter(middleware.NamespaceBooks))
	t.POST("", d.Transactions.Create)
	t.PATCH("", d.Transactions.Return)

	e.GET("/requests", d.Requests.List, middleware.Enforce(policy.AdminOnly))
	e.POST("/requests", d.Requests.Create, middleware.Enforce(policy.AuthenticatedOnly))
}

func registerInbox(e *echo.Echo, d Deps) {
	authed := middleware.Enforce(policy.AuthenticatedOnly)
	admin := middleware.Enforce(policy.AdminOnly)

	e.GET("/notifications", d.Notifications.List, authed)
	e.POST("/notifications/create", d.Notifications.Create, admin)
	e.POST("/notifications/general", d.Notifications.General, admin)
	e.GET("/profile", d.Profile.Get, authed)
}
