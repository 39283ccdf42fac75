package aggregate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qagen/internal/config"
	"qagen/internal/domain"
	"qagen/internal/storage"
)

var testKeywords = []string{"Waiting Period", "Grace Period"}

func testOutput() config.OutputConfig {
	return config.OutputConfig{
		BaseFolder:           "out",
		MaskedSubfolder:      "masked_content",
		QASubfolder:          "qa_outputs",
		DefaultSubfolder:     "default_prompt",
		AlternativeSubfolder: "alternative_prompt",
	}
}

func result(docID, keyword string, variant domain.PromptVariant, aug int, questions ...string) domain.UnitResult {
	var pairs []domain.QAPair
	for _, q := range questions {
		pairs = append(pairs, domain.QAPair{
			Question:       q,
			Answer:         "Answer for " + q + " (Source: " + domain.PolicyDocName(docID) + ", Page 12)",
			SourceDocument: domain.PolicyDocName(docID),
			SourcePages:    []int{12},
		})
	}
	return domain.UnitResult{
		Unit: domain.Unit{
			DocID:             docID,
			Keyword:           keyword,
			Variant:           variant,
			AugmentationIndex: aug,
		},
		Pairs:    pairs,
		Attempts: 1,
	}
}

func TestAddIsIdempotent(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryProvider(), testOutput(), testKeywords)

	res := result("doc_001", "Waiting Period", domain.VariantDefault, 0, "q1")
	assert.True(t, agg.Add(res))
	assert.False(t, agg.Add(res), "a unit may be recorded once")
	assert.Equal(t, 1, agg.PairCount())
}

func TestAddRejectsFailedAndEmptyResults(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryProvider(), testOutput(), testKeywords)

	failed := result("doc_001", "Waiting Period", domain.VariantDefault, 0, "q1")
	failed.Err = domain.TransportError("down", nil)
	assert.False(t, agg.Add(failed))

	empty := result("doc_001", "Grace Period", domain.VariantDefault, 0)
	assert.False(t, agg.Add(empty))
	assert.Equal(t, 0, agg.PairCount())
}

func TestWriteDocumentOrdering(t *testing.T) {
	provider := storage.NewMemoryProvider()
	agg := NewAggregator(provider, testOutput(), testKeywords)

	// Added out of order: second keyword first, later augmentation first.
	require.True(t, agg.Add(result("doc_001", "Grace Period", domain.VariantDefault, 0, "grace q")))
	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 1, "waiting aug1")))
	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 0, "waiting aug0")))

	require.NoError(t, agg.WriteDocument("doc_001", domain.VariantDefault))

	data, err := provider.Read("out/qa_outputs/default_prompt/doc_001_qa.json")
	require.NoError(t, err)

	var artifact struct {
		Document string          `json:"document"`
		QAPairs  []domain.QAPair `json:"qa_pairs"`
		Statistics struct {
			Pairs      int `json:"pairs"`
			Characters int `json:"characters"`
			Words      int `json:"words"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(data, &artifact))

	assert.Equal(t, "[POLICY_DOC_001]", artifact.Document)
	require.Len(t, artifact.QAPairs, 3)
	assert.Equal(t, "waiting aug0", artifact.QAPairs[0].Question)
	assert.Equal(t, "waiting aug1", artifact.QAPairs[1].Question)
	assert.Equal(t, "grace q", artifact.QAPairs[2].Question)
	assert.Equal(t, 3, artifact.Statistics.Pairs)
	assert.Greater(t, artifact.Statistics.Characters, 0)
	assert.Greater(t, artifact.Statistics.Words, 0)
}

func TestWriteDocumentTextArtifact(t *testing.T) {
	provider := storage.NewMemoryProvider()
	agg := NewAggregator(provider, testOutput(), testKeywords)

	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 0, "q one", "q two")))
	require.NoError(t, agg.WriteDocument("doc_001", domain.VariantDefault))

	data, err := provider.Read("out/qa_outputs/default_prompt/doc_001_qa.txt")
	require.NoError(t, err)

	text := string(data)
	blocks := strings.Split(text, "\n<EOS>\n")
	require.Len(t, blocks, 2)
	assert.True(t, strings.HasPrefix(blocks[0], "Q: q one\nA: "))
	assert.True(t, strings.HasPrefix(blocks[1], "Q: q two\nA: "))
	assert.False(t, strings.HasSuffix(text, "<EOS>\n"), "no trailing separator")
}

func TestWriteDocumentWithoutResults(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryProvider(), testOutput(), testKeywords)
	err := agg.WriteDocument("doc_009", domain.VariantDefault)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrorKindAggregation))
}

func TestWriteCombined(t *testing.T) {
	provider := storage.NewMemoryProvider()
	agg := NewAggregator(provider, testOutput(), testKeywords)

	require.True(t, agg.Add(result("doc_002", "Waiting Period", domain.VariantDefault, 0, "doc2 q")))
	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 0, "doc1 q")))

	require.NoError(t, agg.WriteCombined(domain.VariantDefault))

	data, err := provider.Read("out/qa_outputs/default_prompt/combined_qa.json")
	require.NoError(t, err)

	var combined struct {
		Documents  map[string][]domain.QAPair `json:"documents"`
		Statistics struct {
			PerDocument map[string]struct {
				Pairs int `json:"pairs"`
			} `json:"per_document"`
			Total struct {
				Pairs int `json:"pairs"`
			} `json:"total"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(data, &combined))

	require.Len(t, combined.Documents, 2)
	assert.Equal(t, 1, combined.Statistics.PerDocument["doc_001"].Pairs)
	assert.Equal(t, 2, combined.Statistics.Total.Pairs)

	// The text artifact concatenates documents in ID order.
	text, err := provider.Read("out/qa_outputs/default_prompt/combined_qa.txt")
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(text), "doc1 q"), strings.Index(string(text), "doc2 q"))
}

// faultyProvider fails writes whose path carries a given prefix.
type faultyProvider struct {
	*storage.MemoryProvider
	failPrefix string
}

func (p *faultyProvider) Write(path string, content []byte) error {
	if strings.HasPrefix(path, p.failPrefix) {
		return errors.New("disk full")
	}
	return p.MemoryProvider.Write(path, content)
}

func TestWriteAllContinuesPastFailedArtifact(t *testing.T) {
	provider := &faultyProvider{
		MemoryProvider: storage.NewMemoryProvider(),
		failPrefix:     "out/qa_outputs/default_prompt/",
	}
	agg := NewAggregator(provider, testOutput(), testKeywords)

	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 0, "default q")))
	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantAlternative, 0, "alt q")))

	err := agg.WriteAll()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrorKindAggregation))

	// The failing variant is fatal for its own artifacts only; the
	// other variant's artifacts are still produced.
	for _, name := range []string{"doc_001_qa.json", "doc_001_qa.txt", "combined_qa.json", "combined_qa.txt"} {
		data, err := provider.Read("out/qa_outputs/alternative_prompt/" + name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data)
	}
	assert.False(t, provider.Exists("out/qa_outputs/default_prompt/doc_001_qa.json"))
}

func TestWriteAllSeparatesVariants(t *testing.T) {
	provider := storage.NewMemoryProvider()
	agg := NewAggregator(provider, testOutput(), testKeywords)

	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantDefault, 0, "default q")))
	require.True(t, agg.Add(result("doc_001", "Waiting Period", domain.VariantAlternative, 0, "alt q")))

	require.NoError(t, agg.WriteAll())

	paths, err := provider.List("out/qa_outputs", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"out/qa_outputs/default_prompt/doc_001_qa.json",
		"out/qa_outputs/default_prompt/doc_001_qa.txt",
		"out/qa_outputs/default_prompt/combined_qa.json",
		"out/qa_outputs/default_prompt/combined_qa.txt",
		"out/qa_outputs/alternative_prompt/doc_001_qa.json",
		"out/qa_outputs/alternative_prompt/doc_001_qa.txt",
		"out/qa_outputs/alternative_prompt/combined_qa.json",
		"out/qa_outputs/alternative_prompt/combined_qa.txt",
	}, paths)

	defaultText, err := provider.Read("out/qa_outputs/default_prompt/doc_001_qa.txt")
	require.NoError(t, err)
	assert.Contains(t, string(defaultText), "default q")
	assert.NotContains(t, string(defaultText), "alt q")
}
