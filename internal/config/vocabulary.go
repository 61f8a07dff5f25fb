package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the closed domain vocabulary shared by the prompt builder and the normalizer.
// Adding a district means adding it here (or to the YAML override file).
type Vocabulary struct {
	Districts       []string            `yaml:"districts"`
	CanonicalLabels []string            `yaml:"canonical_labels"` // 运营方式 values as stored
	Ownership       []OwnershipCategory `yaml:"ownership"`
	ResourceKinds   map[string][]string `yaml:"resource_kinds"` // elderly / health / both -> synonyms
}

// OwnershipCategory maps colloquial ownership terms to one or more canonical labels
type OwnershipCategory struct {
	Key     string   `yaml:"key"`
	Display string   `yaml:"display"`
	Terms   []string `yaml:"terms"`
	Labels  []string `yaml:"labels"`
}

// DefaultVocabulary returns the built-in Shanghai vocabulary
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Districts: []string{
			"黄浦区", "徐汇区", "长宁区", "静安区", "普陀区", "虹口区", "杨浦区", "闵行区",
			"宝山区", "嘉定区", "浦东新区", "金山区", "松江区", "青浦区", "奉贤区", "崇明区",
		},
		CanonicalLabels: []string{"民建民营", "公建民营", "公建公营"},
		Ownership: []OwnershipCategory{
			{
				Key:     "private",
				Display: "民办",
				Terms:   []string{"民办", "私立", "私营", "private", "privately operated"},
				Labels:  []string{"民建民营", "公建民营"},
			},
			{
				Key:     "public",
				Display: "公办",
				Terms:   []string{"公办", "公立", "公营", "public", "publicly operated"},
				Labels:  []string{"公建公营"},
			},
		},
		ResourceKinds: map[string][]string{
			"elderly": {"elderly", "elder", "养老", "养老院", "敬老院", "护理院", "养老机构", "养老服务机构", "养老服务设施"},
			"health":  {"health", "社区医院", "医院", "卫生中心", "卫生服务中心", "社区卫生服务中心", "医疗资源"},
			"both":    {"both", "all", "全部", "所有", "两者"},
		},
	}
}

// LoadVocabulary returns the default vocabulary, overridden section by section by the YAML file at path
func LoadVocabulary(path string) (*Vocabulary, error) {
	vocab := DefaultVocabulary()
	if strings.TrimSpace(path) == "" {
		return vocab, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	if len(override.Districts) > 0 {
		vocab.Districts = override.Districts
	}
	if len(override.CanonicalLabels) > 0 {
		vocab.CanonicalLabels = override.CanonicalLabels
	}
	if len(override.Ownership) > 0 {
		vocab.Ownership = override.Ownership
	}
	for kind, terms := range override.ResourceKinds {
		if _, ok := vocab.ResourceKinds[kind]; !ok {
			return nil, fmt.Errorf("unknown resource kind %q in vocabulary file", kind)
		}
		vocab.ResourceKinds[kind] = terms
	}

	return vocab, nil
}

// OwnershipByTerm finds the category whose key or terms equal term (case-insensitive)
func (v *Vocabulary) OwnershipByTerm(term string) (OwnershipCategory, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	for _, cat := range v.Ownership {
		if strings.ToLower(cat.Key) == t {
			return cat, true
		}
		for _, alias := range cat.Terms {
			if strings.ToLower(alias) == t {
				return cat, true
			}
		}
	}
	return OwnershipCategory{}, false
}

// OwnershipByKey finds a category by its canonical key
func (v *Vocabulary) OwnershipByKey(key string) (OwnershipCategory, bool) {
	for _, cat := range v.Ownership {
		if cat.Key == key {
			return cat, true
		}
	}
	return OwnershipCategory{}, false
}

// IsCanonicalLabel reports whether label is one of the stored 运营方式 values
func (v *Vocabulary) IsCanonicalLabel(label string) bool {
	for _, l := range v.CanonicalLabels {
		if l == label {
			return true
		}
	}
	return false
}
