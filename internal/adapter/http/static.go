package http

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed web/*
var webFS embed.FS

func (h *Handler) ServeStatic(e *echo.Echo) {
	subFS, _ := fs.Sub(webFS, "web")
	e.GET("/*", echo.WrapHandler(http.FileServer(http.FS(subFS))))
}
