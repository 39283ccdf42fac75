// Package extract turns raw PDF bytes into ordered, masked text blocks
// with page and line provenance.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"qagen/internal/domain"
)

// Extractor reads PDF documents and produces the block stream the
// window builder consumes.
type Extractor struct {
	masker *Masker
}

// NewExtractor creates an extractor with the given masker.
func NewExtractor(masker *Masker) *Extractor {
	return &Extractor{masker: masker}
}

// ExtractBlocks opens a PDF from memory and returns its text blocks in
// (page, line) order, with masking already applied. A document that
// cannot be opened or read yields an extraction error; the caller
// skips that document and continues with the rest of the corpus.
func (e *Extractor) ExtractBlocks(ctx context.Context, data []byte) ([]domain.Block, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.ExtractionError("open pdf", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ExtractionError("pdf has no pages", nil)
	}

	var blocks []domain.Block
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			return nil, domain.ExtractionError(fmt.Sprintf("read page %d", pageNum+1), err)
		}

		for _, block := range splitPageBlocks(text, pageNum+1) {
			block.Text = e.masker.Mask(block.Text)
			blocks = append(blocks, block)
		}
	}

	return blocks, nil
}

// splitPageBlocks splits one page's text into paragraph blocks. A
// block is a run of non-empty lines; its line number is the 1-based
// position of its first line on the page.
func splitPageBlocks(pageText string, page int) []domain.Block {
	var blocks []domain.Block
	var current []string
	startLine := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		blocks = append(blocks, domain.Block{
			Page: page,
			Line: startLine,
			Text: normalizeSpace(strings.Join(current, " ")),
		})
		current = nil
	}

	for i, line := range strings.Split(pageText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if len(current) == 0 {
			startLine = i + 1
		}
		current = append(current, trimmed)
	}
	flush()

	return blocks
}
