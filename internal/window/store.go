package window

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"qagen/internal/domain"
	"qagen/internal/extract"
	"qagen/internal/storage"
)

// Record is the corpus-wide masked content record: every window of
// every document, appended during extraction and persisted exactly
// once. No two windows share (document, keyword, anchor index).
type Record struct {
	mu        sync.Mutex
	docs      map[string]domain.MaskedDocument
	seen      map[string]bool
	persisted bool
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{
		docs: make(map[string]domain.MaskedDocument),
		seen: make(map[string]bool),
	}
}

// Add appends a document's windows to the record, dropping any window
// whose (document, keyword, anchor) was already recorded. Safe for
// concurrent use by the per-document extraction workers.
func (r *Record) Add(doc domain.MaskedDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.docs[doc.DocID]
	if !ok {
		entry = domain.MaskedDocument{
			DocID:            doc.DocID,
			OriginalFilename: doc.OriginalFilename,
		}
	}

	for _, w := range doc.Windows {
		key := fmt.Sprintf("%s|%s|%d", w.DocID, w.Keyword, w.AnchorIndex)
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		entry.Windows = append(entry.Windows, w)
	}

	r.docs[doc.DocID] = entry
}

// Documents returns the recorded documents ordered by document ID.
// Documents with no windows are included so the pipeline can report
// keyword-free documents.
func (r *Record) Documents() []domain.MaskedDocument {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.MaskedDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// maskedWindow is the persisted form of one window.
type maskedWindow struct {
	AnchorIndex int            `json:"anchor_index"`
	Pages       []int          `json:"pages"`
	Location    maskedLocation `json:"location"`
	Blocks      []maskedBlock  `json:"blocks"`
}

// maskedLocation carries the anchor provenance in words, so page and
// line numbers survive the numeric masking rules.
type maskedLocation struct {
	PageNumber string `json:"page_number"`
	LineNumber string `json:"line_number"`
}

type maskedBlock struct {
	Page      int    `json:"page"`
	Line      int    `json:"line"`
	PageWords string `json:"page_words"`
	LineWords string `json:"line_words"`
	Text      string `json:"text"`
}

type maskedDocument struct {
	OriginalFilename string                    `json:"original_filename"`
	Findings         map[string][]maskedWindow `json:"findings"`
}

// Persist writes the record as the canonical masked content artifact.
// The record is written at most once; later calls are no-ops.
func (r *Record) Persist(provider storage.Provider, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.persisted {
		return nil
	}

	out := make(map[string]maskedDocument, len(r.docs))
	for docID, doc := range r.docs {
		if len(doc.Windows) == 0 {
			continue
		}
		findings := make(map[string][]maskedWindow)
		for _, w := range doc.Windows {
			findings[w.Keyword] = append(findings[w.Keyword], toMaskedWindow(w))
		}
		out[docID] = maskedDocument{
			OriginalFilename: doc.OriginalFilename,
			Findings:         findings,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return domain.AggregationError("marshal masked content", err)
	}
	if err := provider.Write(path, data); err != nil {
		return domain.AggregationError("write masked content", err)
	}

	r.persisted = true
	return nil
}

func toMaskedWindow(w domain.Window) maskedWindow {
	blocks := make([]maskedBlock, len(w.Blocks))
	var anchor domain.Block
	for i, b := range w.Blocks {
		blocks[i] = maskedBlock{
			Page:      b.Page,
			Line:      b.Line,
			PageWords: extract.NumberWords(b.Page),
			LineWords: extract.NumberWords(b.Line),
			Text:      b.Text,
		}
	}
	// The anchor block is located by index relative to the window start.
	offset := w.AnchorIndex - firstBlockIndex(w)
	if offset >= 0 && offset < len(w.Blocks) {
		anchor = w.Blocks[offset]
	} else if len(w.Blocks) > 0 {
		anchor = w.Blocks[0]
	}

	return maskedWindow{
		AnchorIndex: w.AnchorIndex,
		Pages:       w.Pages,
		Location: maskedLocation{
			PageNumber: extract.NumberWords(anchor.Page),
			LineNumber: extract.NumberWords(anchor.Line),
		},
		Blocks: blocks,
	}
}

// firstBlockIndex returns the document block index of the window's
// first block: the anchor unless a preceding block was included.
func firstBlockIndex(w domain.Window) int {
	if w.AnchorIndex == 0 {
		return 0
	}
	return w.AnchorIndex - 1
}
