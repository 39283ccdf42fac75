// Package domain holds the core value types shared across the QA
// generation pipeline.
package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PromptVariant selects which prompt template a generation unit uses.
type PromptVariant string

const (
	VariantDefault     PromptVariant = "default"
	VariantAlternative PromptVariant = "alternative"
)

// Variants returns all prompt variants in scheduling order.
func Variants() []PromptVariant {
	return []PromptVariant{VariantDefault, VariantAlternative}
}

// Block is one extracted text block of a source document, ordered by
// (page, line) within the document. Blocks are immutable once produced
// by the extractor.
type Block struct {
	Page int    `json:"page"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Window is a bounded context window around one keyword occurrence:
// the anchor block plus its previous block and the next two blocks,
// where they exist. Blocks always contains the anchor block.
type Window struct {
	DocID       string  `json:"doc_id"`
	Keyword     string  `json:"keyword"`
	AnchorIndex int     `json:"anchor_index"`
	Pages       []int   `json:"pages"`
	Blocks      []Block `json:"blocks"`
}

// MaskedDocument is the per-document slice of the corpus-wide masked
// content record.
type MaskedDocument struct {
	DocID            string
	OriginalFilename string
	Windows          []Window
}

// GenerationUnit is the unit of work scheduled to the orchestrator.
// One unit yields one model call. Windows carries every window found
// for the unit's (document, keyword) pair, in document order.
type GenerationUnit struct {
	DocID             string
	Keyword           string
	KeywordIndex      int
	Windows           []Window
	Variant           PromptVariant
	AugmentationIndex int
}

// Key identifies the unit for checkpointing and aggregation. Two runs
// over the same corpus produce the same keys.
func (u GenerationUnit) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", u.DocID, u.Keyword, u.Variant, u.AugmentationIndex)
}

// PolicyDocName returns the display name used in prompts and citations
// for the unit's document, e.g. "doc_001" -> "[POLICY_DOC_001]".
func (u GenerationUnit) PolicyDocName() string {
	return PolicyDocName(u.DocID)
}

// Pages returns the sorted unique page span across all of the unit's
// windows.
func (u GenerationUnit) Pages() []int {
	seen := make(map[int]bool)
	var pages []int
	for _, w := range u.Windows {
		for _, p := range w.Pages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	sort.Ints(pages)
	return pages
}

// QAPair is one generated question/answer pair with provenance.
type QAPair struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	SourceDocument string `json:"source_document"`
	SourcePages    []int  `json:"source_pages"`
}

// UnitResult is the outcome of one generation unit: either a non-empty
// pair list, or a terminal error after retries were exhausted.
type UnitResult struct {
	Unit      Unit
	Pairs     []QAPair
	Discarded int
	Attempts  int
	Err       error
}

// Unit is the identity portion of a GenerationUnit, kept small for
// manifests and checkpoint rows.
type Unit struct {
	DocID             string        `json:"doc_id"`
	Keyword           string        `json:"keyword"`
	Variant           PromptVariant `json:"variant"`
	AugmentationIndex int           `json:"augmentation_index"`
}

// Identity extracts the manifest identity of a generation unit.
func (u GenerationUnit) Identity() Unit {
	return Unit{
		DocID:             u.DocID,
		Keyword:           u.Keyword,
		Variant:           u.Variant,
		AugmentationIndex: u.AugmentationIndex,
	}
}

// Key mirrors GenerationUnit.Key.
func (u Unit) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", u.DocID, u.Keyword, u.Variant, u.AugmentationIndex)
}

// DocumentFailure is one document that could not be extracted. The run
// skips the document and records it so a re-run can target it.
type DocumentFailure struct {
	DocID   string `json:"doc_id"`
	File    string `json:"file"`
	Message string `json:"message"`
}

// FailureRecord is one entry of the run failure manifest.
type FailureRecord struct {
	Unit     Unit      `json:"unit"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// RunSummary describes a completed pipeline run, including the failure
// manifest a re-run can target.
type RunSummary struct {
	RunID            string            `json:"run_id"`
	Input            string            `json:"input"`
	Documents        int               `json:"documents"`
	DocumentsFailed  int               `json:"documents_failed"`
	UnitsScheduled   int               `json:"units_scheduled"`
	UnitsCompleted   int               `json:"units_completed"`
	UnitsFailed      int               `json:"units_failed"`
	UnitsSkipped     int               `json:"units_skipped"`
	PairsGenerated   int               `json:"pairs_generated"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      time.Time         `json:"completed_at"`
	DocumentFailures []DocumentFailure `json:"document_failures,omitempty"`
	Failures         []FailureRecord   `json:"failures,omitempty"`
}

// PolicyDocName converts a document ID of the form doc_NNN into the
// masked display name [POLICY_DOC_NNN] used in prompts and citations.
// IDs without a numeric suffix are upper-cased verbatim.
func PolicyDocName(docID string) string {
	if i := strings.LastIndex(docID, "_"); i >= 0 {
		if n, err := strconv.Atoi(docID[i+1:]); err == nil {
			return fmt.Sprintf("[POLICY_DOC_%03d]", n)
		}
	}
	return "[" + strings.ToUpper(docID) + "]"
}
