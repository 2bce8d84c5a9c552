package studio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Target is what the download affordance points at.
type Target struct {
	Href   string
	Source ElementKind
}

// ResolveDownloadTarget picks a downloadable representation of the
// container's artifact. An image's source is returned unchanged; a
// surface is serialized to PNG. The boolean is false when the container
// holds neither.
func ResolveDownloadTarget(c Container) (Target, bool) {
	if img := firstImage(c); img != nil {
		return Target{Href: img.Src, Source: KindImage}, true
	}
	if s := firstSurface(c); s != nil {
		href, err := s.DataURL()
		if err != nil {
			return Target{}, false
		}
		return Target{Href: href, Source: KindSurface}, true
	}
	return Target{}, false
}

var errNotDataURL = errors.New("not a base64 data url")

// DecodeDataURL splits a "data:<mime>;base64,<payload>" href into its MIME
// type and decoded bytes.
func DecodeDataURL(href string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(href, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURL
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errNotDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mime, data, nil
}
