package export

import (
	"fmt"
	"io"
)

// MarkdownExporter writes a human-readable transcript.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	conv := doc.Conversation

	title := conv.Title
	if title == "" {
		title = string(conv.ID)
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)
	_, _ = fmt.Fprintf(w, "**Mode:** %s  \n", conv.Mode)
	_, _ = fmt.Fprintf(w, "**Messages:** %d  \n", len(doc.Messages))
	if !conv.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", conv.CreatedAt.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintf(w, "\n---\n\n")

	for i, msg := range doc.Messages {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format("2006-01-02 15:04"))
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n", msg.Role, timestamp, msg.Content)
		if i < len(doc.Messages)-1 {
			_, _ = fmt.Fprintf(w, "\n---\n\n")
		}
	}

	return nil
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
