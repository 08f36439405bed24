// Package preview derives visual nodes from a pending.Set and keeps them in
// step with it.
package preview

import (
	"context"
	"encoding/base64"
	"io"
	"strings"

	"github.com/stagebox/service/internal/pending"
)

// Visual is the content shown in a node's slot.
type Visual interface {
	visual()
}

// ImageVisual is a decoded image ready to display.
type ImageVisual struct {
	DataURI string
}

// VideoVisual references the item's bytes without decoding them. Only
// metadata is preloaded; the poster reuses the source's first frame.
type VideoVisual struct {
	Source  string
	Poster  string
	Preload string
	Muted   bool
}

// TextVisual is a plain label, used for non-media items and failed decodes.
type TextVisual struct {
	Text string
}

func (ImageVisual) visual() {}
func (VideoVisual) visual() {}
func (TextVisual) visual()  {}

// Node is the rendered form of one staged item. Visual is nil for images
// until decoding finishes; the view receives the result through Fill.
type Node struct {
	ID     string
	Name   string
	Kind   pending.MediaKind
	Size   int64
	Visual Visual

	remove func() error
}

// Remove drops the node's item from the set it was rendered from.
func (n *Node) Remove() error {
	return n.remove()
}

// ImageDecoder turns an image item into a displayable data URI.
type ImageDecoder func(ctx context.Context, item pending.Item) (string, error)

// DataURI encodes the item's content as a base64 data URI.
func DataURI(ctx context.Context, item pending.Item) (string, error) {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(item.MIMEType) + base64.StdEncoding.EncodedLen(len(item.Content)))
	b.WriteString("data:")
	b.WriteString(item.MIMEType)
	b.WriteString(";base64,")

	enc := base64.NewEncoder(base64.StdEncoding, &b)
	src := item.Reader()
	buf := make([]byte, 48*1024)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := src.Read(buf)
		if n > 0 {
			_, _ = enc.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// SourceRef is the reference a video node plays from.
func SourceRef(item pending.Item) string {
	return "blob:stagebox/" + item.ID
}

func videoVisual(item pending.Item) VideoVisual {
	src := SourceRef(item)
	return VideoVisual{Source: src, Poster: src, Preload: "metadata", Muted: true}
}
