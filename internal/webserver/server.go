package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/shopadmin/internal/app"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"go.uber.org/zap"
)

// AppContextKey is the echo context key holding the app.AppContext.
const AppContextKey = "appCtx"

const apiPrefix = "/api/v1"

var server *AdminServer

type AdminServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

// Init creates the global admin server
func Init(appCtx app.AppContext) {
	server = NewAdminServer(appCtx)
}

func NewAdminServer(appCtx app.AppContext) *AdminServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &JsoniterSerializer{}
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	if cfg.Web.MaxUploadMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Web.MaxUploadMB)))
	}
	e.Use(ZapRequestLogger())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	// preview images are public; deliverables only go out through the API
	e.Static("/"+assetstore.Prefix, filepath.Join(cfg.Storage.PublicDir, assetstore.Prefix))

	return &AdminServer{
		root:   e,
		api:    e.Group(apiPrefix),
		appCtx: appCtx,
	}
}

// Handler exposes the global server for httptest
func Handler() http.Handler {
	return server.root
}

// Listen starts the global server and blocks until it stops
func Listen() error {
	return server.Start()
}

// Shutdown gracefully stops the global server
func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.root.Shutdown(ctx)
}

func (s *AdminServer) Start() error {
	cfg := s.appCtx.Config()
	s.root.Server.ReadHeaderTimeout = 10 * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.L().Info("admin server listening", zap.String("namespace", "webserver"), zap.String("addr", addr))
	err := s.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}
