// Package pending holds the ordered, session-scoped set of files a user has
// staged for upload.
package pending

import (
	"bytes"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MediaKind selects how a staged item is previewed.
type MediaKind int

const (
	KindOther MediaKind = iota
	KindImage
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// KindOf maps a MIME type to a MediaKind by its top-level prefix.
func KindOf(mimeType string) MediaKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindOther
	}
}

// Item is one staged file. ID and Kind are assigned by Set.Add and never
// change afterwards; an ID supplied by the caller is replaced.
type Item struct {
	ID       string
	Name     string
	MIMEType string
	Kind     MediaKind
	Content  []byte
}

// Size returns the length of the item's content in bytes.
func (i Item) Size() int64 {
	return int64(len(i.Content))
}

// Reader returns a fresh reader over the item's content.
func (i Item) Reader() io.Reader {
	return bytes.NewReader(i.Content)
}

// stage fills in the fields owned by the set: a stable ID, the MIME type
// when the source did not supply one, and the media kind.
func stage(it Item) Item {
	it.ID = uuid.NewString()
	if strings.TrimSpace(it.MIMEType) == "" {
		it.MIMEType = mimetype.Detect(it.Content).String()
	}
	it.Kind = KindOf(it.MIMEType)
	return it
}
