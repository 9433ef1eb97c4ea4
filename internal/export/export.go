// Package export writes conversation transcripts in portable formats.
package export

import (
	"fmt"
	"io"

	"github.com/user/draftsync/internal/types"
)

// Document bundles a conversation with its transcript for export.
type Document struct {
	Conversation *types.Conversation `json:"conversation" yaml:"conversation"`
	Messages     []*types.Message    `json:"messages" yaml:"messages"`
}

// Exporter writes a Document in one concrete format.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for a format name.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, md, yaml)", format)
	}
}
