// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperStatus is the terminal state of the most recent processing run.
type PaperStatus string

const (
	PaperPending   PaperStatus = "pending"
	PaperCompleted PaperStatus = "completed"
	PaperError     PaperStatus = "error"
)

// Paper holds the registry entry for one processed paper.
type Paper struct {
	// ID is a slug derived from the DOI, arXiv id, or PDF filename.
	ID string `json:"id" yaml:"id"`

	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Pages is the page count read from the PDF, 0 when unreadable.
	Pages int `json:"pages" yaml:"pages"`

	Status    PaperStatus `json:"status" yaml:"status"`
	Message   string      `json:"message,omitempty" yaml:"message,omitempty"`
	LastRunID string      `json:"last_run_id,omitempty" yaml:"last_run_id,omitempty"`
	UpdatedAt time.Time   `json:"updated_at" yaml:"updated_at"`
}
