// Package aggregate collects generation results and writes the QA
// artifacts: per-document and combined files, in JSON and plain text,
// one set per prompt variant.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"qagen/internal/config"
	"qagen/internal/domain"
	"qagen/internal/storage"
)

// pairSeparator joins QA blocks in the plain-text artifacts.
const pairSeparator = "\n<EOS>\n"

// Aggregator accumulates unit results and reorders them
// deterministically before writing. Adding the same unit twice keeps
// the first result, so merging checkpointed results with fresh ones is
// idempotent.
type Aggregator struct {
	mu           sync.Mutex
	provider     storage.Provider
	output       config.OutputConfig
	keywordIndex map[string]int
	results      map[string]domain.UnitResult
}

// NewAggregator creates an aggregator. keywords fixes the reorder key:
// results are sorted by document, then configured keyword position,
// then augmentation round.
func NewAggregator(provider storage.Provider, output config.OutputConfig, keywords []string) *Aggregator {
	idx := make(map[string]int, len(keywords))
	for i, kw := range keywords {
		idx[kw] = i
	}
	return &Aggregator{
		provider:     provider,
		output:       output,
		keywordIndex: idx,
		results:      make(map[string]domain.UnitResult),
	}
}

// Add records a successful unit result. Failed results and duplicates
// of an already recorded unit are ignored; the return value reports
// whether the result was recorded.
func (a *Aggregator) Add(res domain.UnitResult) bool {
	if res.Err != nil || len(res.Pairs) == 0 {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := res.Unit.Key()
	if _, ok := a.results[key]; ok {
		return false
	}
	a.results[key] = res
	return true
}

// PairCount returns the total number of recorded pairs across all
// variants.
func (a *Aggregator) PairCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, res := range a.results {
		n += len(res.Pairs)
	}
	return n
}

// DocumentIDs returns the sorted IDs of documents holding results for
// the given variant.
func (a *Aggregator) DocumentIDs(variant domain.PromptVariant) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, res := range a.results {
		if res.Unit.Variant == variant && !seen[res.Unit.DocID] {
			seen[res.Unit.DocID] = true
			ids = append(ids, res.Unit.DocID)
		}
	}
	sort.Strings(ids)
	return ids
}

// documentPairs returns the variant's pairs for one document in
// canonical order. Caller holds the lock.
func (a *Aggregator) documentPairs(docID string, variant domain.PromptVariant) []domain.QAPair {
	var ordered []domain.UnitResult
	for _, res := range a.results {
		if res.Unit.DocID == docID && res.Unit.Variant == variant {
			ordered = append(ordered, res)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		ki, kj := a.keywordIndex[ordered[i].Unit.Keyword], a.keywordIndex[ordered[j].Unit.Keyword]
		if ki != kj {
			return ki < kj
		}
		return ordered[i].Unit.AugmentationIndex < ordered[j].Unit.AugmentationIndex
	})

	var pairs []domain.QAPair
	for _, res := range ordered {
		pairs = append(pairs, res.Pairs...)
	}
	return pairs
}

// statistics describes a pair collection for the JSON artifacts.
type statistics struct {
	Pairs      int `json:"pairs"`
	Characters int `json:"characters"`
	Words      int `json:"words"`
}

func collectStatistics(pairs []domain.QAPair) statistics {
	s := statistics{Pairs: len(pairs)}
	for _, p := range pairs {
		text := p.Question + " " + p.Answer
		s.Characters += len(text)
		s.Words += len(strings.Fields(text))
	}
	return s
}

type documentArtifact struct {
	Document   string          `json:"document"`
	QAPairs    []domain.QAPair `json:"qa_pairs"`
	Statistics statistics      `json:"statistics"`
}

type combinedArtifact struct {
	Documents  map[string][]domain.QAPair `json:"documents"`
	Statistics combinedStatistics         `json:"statistics"`
}

type combinedStatistics struct {
	PerDocument map[string]statistics `json:"per_document"`
	Total       statistics            `json:"total"`
}

// WriteDocument writes the per-document JSON and text artifacts for one
// variant. A failed artifact does not stop the other one; the errors
// are joined. Writing a document with no results is an error.
func (a *Aggregator) WriteDocument(docID string, variant domain.PromptVariant) error {
	a.mu.Lock()
	pairs := a.documentPairs(docID, variant)
	a.mu.Unlock()

	if len(pairs) == 0 {
		return domain.AggregationError(fmt.Sprintf("no results for document %s variant %s", docID, variant), nil)
	}

	dir := a.variantDir(variant)
	artifact := documentArtifact{
		Document:   domain.PolicyDocName(docID),
		QAPairs:    pairs,
		Statistics: collectStatistics(pairs),
	}
	return errors.Join(
		a.writeJSON(path.Join(dir, docID+"_qa.json"), artifact),
		a.writeText(path.Join(dir, docID+"_qa.txt"), pairs),
	)
}

// WriteCombined writes the corpus-wide JSON and text artifacts for one
// variant, documents in ID order.
func (a *Aggregator) WriteCombined(variant domain.PromptVariant) error {
	ids := a.DocumentIDs(variant)

	a.mu.Lock()
	combined := combinedArtifact{
		Documents: make(map[string][]domain.QAPair, len(ids)),
		Statistics: combinedStatistics{
			PerDocument: make(map[string]statistics, len(ids)),
		},
	}
	var allPairs []domain.QAPair
	for _, docID := range ids {
		pairs := a.documentPairs(docID, variant)
		combined.Documents[docID] = pairs
		combined.Statistics.PerDocument[docID] = collectStatistics(pairs)
		allPairs = append(allPairs, pairs...)
	}
	combined.Statistics.Total = collectStatistics(allPairs)
	a.mu.Unlock()

	dir := a.variantDir(variant)
	return errors.Join(
		a.writeJSON(path.Join(dir, "combined_qa.json"), combined),
		a.writeText(path.Join(dir, "combined_qa.txt"), allPairs),
	)
}

// WriteAll writes every per-document artifact and both combined
// artifacts for every variant that has results. Every artifact is
// attempted; a failed write is fatal for that artifact only, and the
// collected errors are returned joined.
func (a *Aggregator) WriteAll() error {
	var errs []error
	for _, variant := range domain.Variants() {
		ids := a.DocumentIDs(variant)
		if len(ids) == 0 {
			continue
		}
		for _, docID := range ids {
			if err := a.WriteDocument(docID, variant); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.WriteCombined(variant); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Aggregator) variantDir(variant domain.PromptVariant) string {
	return path.Join(a.output.BaseFolder, a.output.QASubfolder, a.output.VariantSubfolder(variant))
}

func (a *Aggregator) writeJSON(p string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.AggregationError("marshal artifact "+p, err)
	}
	if err := a.provider.Write(p, data); err != nil {
		return domain.AggregationError("write artifact "+p, err)
	}
	return nil
}

func (a *Aggregator) writeText(p string, pairs []domain.QAPair) error {
	blocks := make([]string, len(pairs))
	for i, pair := range pairs {
		blocks[i] = fmt.Sprintf("Q: %s\nA: %s", pair.Question, pair.Answer)
	}
	if err := a.provider.Write(p, []byte(strings.Join(blocks, pairSeparator))); err != nil {
		return domain.AggregationError("write artifact "+p, err)
	}
	return nil
}
