// Package window builds keyword-anchored context windows over extracted
// blocks and accumulates them into the corpus-wide masked content
// record.
package window

import (
	"sort"
	"strings"

	"qagen/internal/domain"
)

// BuildWindows scans blocks once per keyword, in document order, and
// emits a window for every keyword occurrence not already covered by an
// earlier window of the same keyword. A window holds the anchor block,
// the block before it, and the two blocks after it, where they exist;
// the scan cursor then advances past the last included block so windows
// of the same keyword never overlap.
//
// The output is fully determined by its inputs: identical blocks and
// keywords always produce an identical window sequence.
func BuildWindows(docID string, blocks []domain.Block, keywords []string) []domain.Window {
	var windows []domain.Window

	for _, keyword := range keywords {
		needle := strings.ToLower(keyword)
		for i := 0; i < len(blocks); i++ {
			if !strings.Contains(strings.ToLower(blocks[i].Text), needle) {
				continue
			}
			windows = append(windows, buildWindow(docID, keyword, blocks, i))
			// Skip past the trailing context blocks.
			i += 2
		}
	}

	return windows
}

func buildWindow(docID, keyword string, blocks []domain.Block, anchor int) domain.Window {
	start := anchor - 1
	if start < 0 {
		start = 0
	}
	end := anchor + 3
	if end > len(blocks) {
		end = len(blocks)
	}

	selected := make([]domain.Block, end-start)
	copy(selected, blocks[start:end])

	pageSet := make(map[int]bool)
	var pages []int
	for _, b := range selected {
		if !pageSet[b.Page] {
			pageSet[b.Page] = true
			pages = append(pages, b.Page)
		}
	}
	sort.Ints(pages)

	return domain.Window{
		DocID:       docID,
		Keyword:     keyword,
		AnchorIndex: anchor,
		Pages:       pages,
		Blocks:      selected,
	}
}
