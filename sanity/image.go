package sanity

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ImageCDN is the host serving image assets.
const ImageCDN = "https://cdn.sanity.io"

// ErrInvalidImageRef is returned for asset references that are not of the
// form image-<id>-<width>x<height>-<format>.
var ErrInvalidImageRef = errors.New("sanity: invalid image reference")

// ImageRef is a parsed image asset reference.
type ImageRef struct {
	ID     string
	Width  int
	Height int
	Format string
}

// ParseImageRef parses an asset _ref such as
// "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg".
func ParseImageRef(ref string) (ImageRef, error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 4 || parts[0] != "image" {
		return ImageRef{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	w, h, ok := strings.Cut(parts[2], "x")
	if !ok {
		return ImageRef{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return ImageRef{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return ImageRef{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	for _, r := range parts[1] + parts[3] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ImageRef{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
		}
	}
	return ImageRef{ID: parts[1], Width: width, Height: height, Format: parts[3]}, nil
}

// URL returns the CDN URL of the asset. A positive width asks the CDN to
// scale the image down.
func (r ImageRef) URL(e Endpoint, width int) string {
	u := r.SourceURL(ImageCDN, e)
	if width > 0 {
		u += "?w=" + strconv.Itoa(width) + "&auto=format"
	}
	return u
}

// SourceURL returns the unscaled asset URL on base, which is ImageCDN
// outside of tests.
func (r ImageRef) SourceURL(base string, e Endpoint) string {
	return strings.TrimSuffix(base, "/") + "/images/" + url.PathEscape(e.ProjectID) + "/" + url.PathEscape(e.Dataset) + "/" +
		r.ID + "-" + strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height) + "." + r.Format
}

// ImageAssetRef extracts asset._ref from an image field value.
func ImageAssetRef(image any) string {
	var doc Document
	switch v := image.(type) {
	case map[string]any:
		doc = Document(v)
	case Document:
		doc = v
	default:
		return ""
	}
	return doc.String("asset._ref")
}

// ImageURL builds the CDN URL for an image field value, or "" if it carries
// no usable asset reference.
func ImageURL(e Endpoint, image any, width int) string {
	ref, err := ParseImageRef(ImageAssetRef(image))
	if err != nil {
		return ""
	}
	return ref.URL(e, width)
}
