package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/feed"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// httpError maps a gateway failure kind to a status code
func httpError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrValidationRejected):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session")
	case errors.Is(err, gateway.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Only the creator can change this post")
	case errors.Is(err, gateway.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, gateway.ErrServiceUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Backend unavailable, please try again")
	case errors.Is(err, gateway.ErrPartialFailure):
		return echo.NewHTTPError(http.StatusBadGateway, "Action did not fully complete, please refresh")
	case errors.Is(err, feed.ErrClosed):
		return echo.NewHTTPError(http.StatusConflict, "Feed closed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// validate runs the echo validator on a bound form
func validate(c echo.Context, op string, form any) error {
	if err := c.Validate(form); err != nil {
		return httpError(gateway.Reject(op, gateway.ErrValidationRejected, err))
	}
	return nil
}

func mustClient(c echo.Context) error {
	if middleware.ClientFrom(c) == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing session")
	}
	return nil
}

// formFile reads the optional "file" part of a multipart request
func formFile(c echo.Context) (*models.Upload, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}
	return &models.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}
