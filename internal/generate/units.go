// Package generate schedules generation units against the inference
// endpoint and turns completions into validated QA pairs.
package generate

import (
	"strings"

	"qagen/internal/domain"
)

// BuildUnits expands a masked corpus into generation units. For every
// document, each keyword that produced at least one window yields one
// unit per prompt variant per augmentation round. Unit order is fixed:
// documents as given, keywords in configured order, default before
// alternative, augmentation rounds ascending.
func BuildUnits(docs []domain.MaskedDocument, keywords []string, augmentation int) []domain.GenerationUnit {
	if augmentation < 1 {
		augmentation = 1
	}

	var units []domain.GenerationUnit
	for _, doc := range docs {
		byKeyword := make(map[string][]domain.Window)
		for _, w := range doc.Windows {
			byKeyword[w.Keyword] = append(byKeyword[w.Keyword], w)
		}

		for ki, keyword := range keywords {
			windows := byKeyword[keyword]
			if len(windows) == 0 {
				continue
			}
			for aug := 0; aug < augmentation; aug++ {
				for _, variant := range domain.Variants() {
					units = append(units, domain.GenerationUnit{
						DocID:             doc.DocID,
						Keyword:           keyword,
						KeywordIndex:      ki,
						Windows:           windows,
						Variant:           variant,
						AugmentationIndex: aug,
					})
				}
			}
		}
	}
	return units
}

// FilterKeyword keeps only the units for one keyword, matched
// case-insensitively. An empty keyword keeps everything.
func FilterKeyword(units []domain.GenerationUnit, keyword string) []domain.GenerationUnit {
	if keyword == "" {
		return units
	}
	var out []domain.GenerationUnit
	for _, u := range units {
		if strings.EqualFold(u.Keyword, keyword) {
			out = append(out, u)
		}
	}
	return out
}
