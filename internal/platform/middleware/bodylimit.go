package middleware

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

// DefaultBodyLimit is the maximum accepted request body size.
const DefaultBodyLimit int64 = 1 << 20 // 1 MB

// BodyLimit returns middleware that rejects request bodies larger than
// limit bytes. The Content-Length header is checked first for early
// rejection; a limiting reader enforces the cap even when the header is
// missing or wrong.
func BodyLimit(limit int64) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > limit {
				return httperr.New(httperr.KindValidation, "request body too large")
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, httperr.New(httperr.KindValidation, "request body too large")
	}

	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, httperr.New(httperr.KindValidation, "request body too large")
	}
	return n, err
}
