package models

import "time"

// DocumentChunk is a retrievable unit of compliance-control text. Chunks are
// written by the ingestion path and are immutable once stored; the retrieval
// core only reads them.
type DocumentChunk struct {
	ChunkID   string
	Content   string
	Heading   string
	Framework string
	ControlID string
	Section   string
	Embedding []float32
	TenantID  string
	CreatedAt time.Time
}

// Citation renders the human-readable source string for a chunk, e.g.
// "SOC 2 CC6.1 — Logical Access Controls".
func (c DocumentChunk) Citation() string {
	s := c.Framework
	if c.ControlID != "" {
		if s != "" {
			s += " "
		}
		s += c.ControlID
	}
	if c.Heading != "" {
		if s != "" {
			s += " — "
		}
		s += c.Heading
	}
	if s == "" {
		s = c.ChunkID
	}
	return s
}
