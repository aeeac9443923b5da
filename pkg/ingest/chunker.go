package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/complyra/ragsafe/internal/models"
)

type ChunkerConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
	Framework      string
	TenantID       string
}

// Chunker splits framework documents into sentence-aligned chunks and tags
// each chunk with the control identifier its text references.
type Chunker struct {
	config ChunkerConfig
}

// Control identifier styles across the supported frameworks:
// NIST 800-53 ("AC-2", "AC-2(3)"), ISO 27001 ("A.9.4.1"),
// SOC 2 ("CC6.1"), PCI DSS ("8.3.1" when prefixed with "Requirement").
var controlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2}-\d+(?:\(\d+\))?\b`),
	regexp.MustCompile(`\bA\.\d+(?:\.\d+)+\b`),
	regexp.MustCompile(`\bCC\d+\.\d+\b`),
	regexp.MustCompile(`\bRequirement\s+(\d+(?:\.\d+)+)\b`),
}

func NewChunker(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}
	return Chunker{config: config}
}

// Chunk turns fetched documents into index-ready chunks. The document title
// becomes the chunk heading, and the first control identifier found in a
// chunk's text becomes its ControlID.
func (c *Chunker) Chunk(docs []Document) []models.DocumentChunk {
	var chunks []models.DocumentChunk

	for _, doc := range docs {
		pieces := c.split(cleanText(doc.Content))
		for i, piece := range pieces {
			chunks = append(chunks, models.DocumentChunk{
				ChunkID:   chunkID(doc.URL, i),
				Content:   piece,
				Heading:   doc.Title,
				Framework: c.config.Framework,
				ControlID: ExtractControlID(piece),
				Section:   sectionFromURL(doc.URL),
				TenantID:  c.config.TenantID,
				CreatedAt: time.Now(),
			})
		}
	}

	return chunks
}

// ExtractControlID returns the first control identifier found in text, or
// the empty string.
func ExtractControlID(text string) string {
	for _, pattern := range controlPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		// The PCI pattern captures the bare number without its prefix.
		if len(m) > 1 {
			return m[1]
		}
		return m[0]
	}
	return ""
}

func (c *Chunker) split(text string) []string {
	var chunks []string

	sentences := splitSentences(text)
	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		if currentChunk.Len()+len(sentence) > c.config.ChunkSize {
			if currentChunk.Len() >= c.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Carry trailing text into the next chunk so control statements
			// split mid-thought stay retrievable from both sides.
			if c.config.ChunkOverlap > 0 && currentChunk.Len() > c.config.ChunkOverlap {
				tail := currentChunk.String()
				lastPart := tail[len(tail)-c.config.ChunkOverlap:]
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	if currentChunk.Len() >= c.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func splitSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}
	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

// cleanText normalizes whitespace but keeps original casing; control
// identifiers are case-sensitive.
func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func sectionFromURL(urlStr string) string {
	trimmed := strings.TrimRight(urlStr, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		section := trimmed[idx+1:]
		section = strings.TrimSuffix(section, ".html")
		section = strings.TrimSuffix(section, ".htm")
		if section != "" && !strings.Contains(section, "://") {
			return section
		}
	}
	return ""
}

func chunkID(url string, ordinal int) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:8]), ordinal)
}
