// Package analysis talks to the document-analysis AI and holds the small
// amount of decision logic around it: reading the classification reply,
// confirming a category, and pairing answers with question templates.
package analysis

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
)

// Analyzer asks one question about one file and returns the model's raw text.
type Analyzer interface {
	Ask(ctx context.Context, file UploadedFile, question string) (string, error)
}

type UploadedFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
	Data     []byte `json:"-"`
}

// NewUploadedFile sniffs the content type from the bytes, ignoring whatever
// the client claimed.
func NewUploadedFile(name string, data []byte) UploadedFile {
	return UploadedFile{
		Name:     name,
		MIMEType: mimetype.Detect(data).String(),
		Size:     len(data),
		Data:     data,
	}
}
