// Package blob stores uploaded attachments and serves them back by name.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob: object not found")

type Object struct {
	Name        string
	Size        int64
	ContentType string
}

// Store persists opaque attachment bytes under a name.
type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (*Object, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *Object, error)
}

// ObjectName derives a unique, path-safe object name from an uploaded file
// name, keeping its extension so the media type can still be inferred.
func ObjectName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" {
		base = "file"
	}
	return uuid.NewString() + "-" + base
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\") && !strings.HasPrefix(name, ".")
}

func defaultContentType(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
