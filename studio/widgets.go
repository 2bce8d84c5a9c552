package studio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// ElementKind names the two artifact representations an encoder may
// produce.
type ElementKind string

const (
	KindImage   ElementKind = "image"
	KindSurface ElementKind = "surface"
)

// Element is one visual child of a Container.
type Element interface {
	Kind() ElementKind
	SetAnimation(animation string)
	Animation() string
}

// Image is an element with a fixed source reference, usually a data URL.
type Image struct {
	Src       string
	Alt       string
	animation string
}

func (i *Image) Kind() ElementKind { return KindImage }
func (i *Image) SetAnimation(a string) { i.animation = a }
func (i *Image) Animation() string { return i.animation }

// Surface is a drawable pixel buffer whose contents can be read back.
type Surface struct {
	Pixels    image.Image
	animation string
}

func (s *Surface) Kind() ElementKind { return KindSurface }
func (s *Surface) SetAnimation(a string) { s.animation = a }
func (s *Surface) Animation() string { return s.animation }

// DataURL serializes the surface's current pixels as a PNG data URL.
func (s *Surface) DataURL() (string, error) {
	if s.Pixels == nil {
		return "", fmt.Errorf("surface has no pixels")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Pixels); err != nil {
		return "", fmt.Errorf("encode surface png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Container is the display area an encoder populates.
type Container interface {
	Clear()
	Append(el Element)
	Children() []Element
}

// TextField is the text input the user types into.
type TextField interface {
	Value() string
	Focus()
}

// DownloadLink is the download affordance.
type DownloadLink interface {
	SetHref(href string)
	RemoveHref()
}

// GenerateButton is the generate affordance.
type GenerateButton interface {
	SetEnabled(enabled bool)
}

// firstImage returns the first image child, if any.
func firstImage(c Container) *Image {
	for _, el := range c.Children() {
		if img, ok := el.(*Image); ok {
			return img
		}
	}
	return nil
}

// firstSurface returns the first surface child, if any.
func firstSurface(c Container) *Surface {
	for _, el := range c.Children() {
		if s, ok := el.(*Surface); ok {
			return s
		}
	}
	return nil
}

// --- in-memory implementations ----------------------------------------------

// MemContainer is a Container held in memory.
type MemContainer struct {
	children []Element
}

func (c *MemContainer) Clear() { c.children = nil }
func (c *MemContainer) Append(el Element) { c.children = append(c.children, el) }
func (c *MemContainer) Children() []Element { return c.children }

// MemTextField is a TextField held in memory.
type MemTextField struct {
	value   string
	focused bool
}

func (f *MemTextField) Value() string { return f.value }
func (f *MemTextField) Focus() { f.focused = true }
func (f *MemTextField) SetValue(v string) { f.value = v }

// TakeFocus reports and clears a pending focus request.
func (f *MemTextField) TakeFocus() bool {
	was := f.focused
	f.focused = false
	return was
}

// MemLink is a DownloadLink held in memory.
type MemLink struct {
	Href string
}

func (l *MemLink) SetHref(href string) { l.Href = href }
func (l *MemLink) RemoveHref() { l.Href = "" }

// MemButton is a GenerateButton held in memory.
type MemButton struct {
	Enabled bool
}

func (b *MemButton) SetEnabled(enabled bool) { b.Enabled = enabled }
