package sanitypress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/sanitypress/sanity"
)

const (
	defaultMediaWidth = 800
	maxMediaWidth     = 1600
	jpegQuality       = 80
	maxSourceSize     = 25 << 20 // 25MB
)

var errBadSource = errors.New("media: source is not a decodable image")

// scaleImage decodes src, scales it down to at most maxWidth and encodes it
// as JPEG. Images already narrower than maxWidth are only re-encoded.
func scaleImage(src io.Reader, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadSource, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxWidth {
		newH := max(h*maxWidth/w, 1)
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// mediaWidth parses ?w=, defaulting to defaultMediaWidth and capping at
// maxMediaWidth.
func mediaWidth(raw string) (int, bool) {
	if raw == "" {
		return defaultMediaWidth, true
	}
	w, err := strconv.Atoi(raw)
	if err != nil || w < 1 {
		return 0, false
	}
	return min(w, maxMediaWidth), true
}

// handleMedia serves a JPEG derivative of an image asset at a bounded width.
func (a *App) handleMedia(c echo.Context) error {
	ref, err := sanity.ParseImageRef(c.Param("asset"))
	if err != nil {
		return echo.ErrNotFound
	}
	width, ok := mediaWidth(c.QueryParam("w"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid width")
	}

	src := ref.SourceURL(a.imageBaseURL, a.Config.Sanity)
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := a.Content.HTTPClient().Do(req)
	if err != nil {
		a.Logger.Warn("image fetch failed", zap.String("url", src), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "image unavailable")
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return echo.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		a.Logger.Warn("image fetch returned non-success status", zap.String("url", src), zap.Int("status", resp.StatusCode))
		return echo.NewHTTPError(http.StatusBadGateway, "image unavailable")
	}

	data, err := scaleImage(io.LimitReader(resp.Body, maxSourceSize), width)
	if errors.Is(err, errBadSource) {
		a.Logger.Warn("image decode failed", zap.String("url", src), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "image unavailable")
	}
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
