package service

import (
	"fmt"
	"strings"

	"carefinder/internal/config"
	"carefinder/internal/model"
)

var resourceKindPhrases = map[model.ResourceKind]string{
	model.KindElderly: "查询养老服务机构",
	model.KindHealth:  "查询社区卫生服务中心",
	model.KindBoth:    "查询养老机构和卫生服务中心",
}

// Explain renders the intent as a short Chinese sentence.
// Clause order is fixed: kind, district, beds, ownership, keyword, radius.
func Explain(intent model.ParsedIntent, vocab *config.Vocabulary) string {
	parts := make([]string, 0, 6)

	phrase, ok := resourceKindPhrases[intent.ResourceKind]
	if !ok {
		phrase = "查询所有资源"
	}
	parts = append(parts, phrase)

	if intent.District != nil {
		parts = append(parts, "位于"+*intent.District)
	}

	switch {
	case intent.MinBeds != nil && intent.MaxBeds != nil:
		parts = append(parts, fmt.Sprintf("床位数在%d-%d张之间", *intent.MinBeds, *intent.MaxBeds))
	case intent.MinBeds != nil:
		parts = append(parts, fmt.Sprintf("床位数≥%d张", *intent.MinBeds))
	case intent.MaxBeds != nil:
		parts = append(parts, fmt.Sprintf("床位数≤%d张", *intent.MaxBeds))
	}

	if intent.OwnershipCategory != nil {
		display := *intent.OwnershipCategory
		if vocab != nil {
			if cat, ok := vocab.OwnershipByKey(display); ok && cat.Display != "" {
				display = cat.Display
			}
		}
		parts = append(parts, "运营方式为"+display)
	}

	if intent.Keyword != nil {
		parts = append(parts, fmt.Sprintf("名称包含\"%s\"", *intent.Keyword))
	}

	if intent.RadiusMeters != nil {
		parts = append(parts, fmt.Sprintf("在%.1f公里范围内", *intent.RadiusMeters/1000))
	}

	return strings.Join(parts, "，")
}
