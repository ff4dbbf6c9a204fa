package blobstore

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
)

// ServeHandler streams a stored file addressed by its relative path under
// PublicPrefix. Mount it at "/uploads/*".
func ServeHandler(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, err := CleanKey(c.Param("*"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "Archivo no encontrado")
		}

		rc, err := store.Open(c.Request().Context(), key)
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Archivo no encontrado")
		}
		if err != nil {
			return err
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = echo.MIMEOctetStream
		}
		c.Response().Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		return c.Stream(http.StatusOK, contentType, rc)
	}
}
