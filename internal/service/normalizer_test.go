package service

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"carefinder/internal/config"
	"carefinder/internal/model"
)

func decodeRaw(t *testing.T, text string) model.RawIntent {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw model.RawIntent
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("decode %s: %v", text, err)
	}
	return raw
}

func TestIntentNormalizer_Normalize(t *testing.T) {
	n := NewIntentNormalizer(config.DefaultVocabulary(), config.UnboundedLimit)

	tests := []struct {
		name      string
		raw       string
		want      model.ParsedIntent
		wantDiags []string
	}{
		{
			name: "Pudong elderly with bed floor",
			raw:  `{"resource_type": "elderly", "district": "浦东新区", "min_beds": 100, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 20000}`,
			want: model.ParsedIntent{
				ResourceKind: model.KindElderly,
				District:     strPtr("浦东新区"),
				MinBeds:      intPtr(100),
				ResultLimit:  20000,
			},
		},
		{
			name: "Health within radius",
			raw:  `{"resource_type": "health", "radius": 3000, "limit": 20000}`,
			want: model.ParsedIntent{
				ResourceKind: model.KindHealth,
				RadiusMeters: float64Ptr(3000),
				ResultLimit:  20000,
			},
		},
		{
			name: "Nearest three privately operated",
			raw:  `{"resource_type": "elderly", "service_type": "民办", "radius": null, "limit": 3}`,
			want: model.ParsedIntent{
				ResourceKind:      model.KindElderly,
				OwnershipCategory: strPtr("private"),
				ResultLimit:       3,
			},
		},
		{
			name: "Empty object takes defaults",
			raw:  `{}`,
			want: model.ParsedIntent{ResourceKind: model.KindUnspecified, ResultLimit: 20000},
		},
		{
			name: "Synonyms and short district",
			raw:  `{"resource_type": "敬老院", "district": "浦东", "service_type": "公办"}`,
			want: model.ParsedIntent{
				ResourceKind:      model.KindElderly,
				District:          strPtr("浦东新区"),
				OwnershipCategory: strPtr("public"),
				ResultLimit:       20000,
			},
		},
		{
			name: "Canonical label passes through",
			raw:  `{"service_type": "公建民营"}`,
			want: model.ParsedIntent{
				ResourceKind:      model.KindUnspecified,
				OwnershipCategory: strPtr("公建民营"),
				ResultLimit:       20000,
			},
		},
		{
			name: "Unknown ownership text passes through",
			raw:  `{"service_type": " 公办民营 "}`,
			want: model.ParsedIntent{
				ResourceKind:      model.KindUnspecified,
				OwnershipCategory: strPtr("公办民营"),
				ResultLimit:       20000,
			},
		},
		{
			name: "Unknown district kept as free text",
			raw:  `{"district": "陆家嘴"}`,
			want: model.ParsedIntent{
				ResourceKind: model.KindUnspecified,
				District:     strPtr("陆家嘴"),
				ResultLimit:  20000,
			},
		},
		{
			name: "Null literals are absent",
			raw:  `{"district": "null", "keyword": "None", "service_type": "", "radius": "null"}`,
			want: model.ParsedIntent{ResourceKind: model.KindUnspecified, ResultLimit: 20000},
		},
		{
			name: "Numeric strings are coerced",
			raw:  `{"min_beds": "50", "max_beds": "100.0", "radius": "1500.5", "limit": "5"}`,
			want: model.ParsedIntent{
				ResourceKind: model.KindUnspecified,
				MinBeds:      intPtr(50),
				MaxBeds:      intPtr(100),
				RadiusMeters: float64Ptr(1500.5),
				ResultLimit:  5,
			},
		},
		{
			name: "Canonical keys win over prompt keys",
			raw:  `{"resource_kind": "health", "resource_type": "elderly", "result_limit": 7, "limit": 3}`,
			want: model.ParsedIntent{ResourceKind: model.KindHealth, ResultLimit: 7},
		},
		{
			name: "Two kinds mentioned means both",
			raw:  `{"resource_type": "养老机构和医院"}`,
			want: model.ParsedIntent{ResourceKind: model.KindBoth, ResultLimit: 20000},
		},
		{
			name: "Invalid fields are dropped with diagnostics",
			raw:  `{"resource_type": "pharmacy", "min_beds": -5, "max_beds": 10.5, "radius": 0, "limit": -1, "district": 42}`,
			want: model.ParsedIntent{ResourceKind: model.KindUnspecified, ResultLimit: 20000},
			wantDiags: []string{
				"resource_type", "district", "min_beds", "max_beds", "radius", "limit",
			},
		},
		{
			name: "Zero beds is kept",
			raw:  `{"min_beds": 0}`,
			want: model.ParsedIntent{ResourceKind: model.KindUnspecified, MinBeds: intPtr(0), ResultLimit: 20000},
		},
		{
			name: "Inverted bed range is not corrected",
			raw:  `{"min_beds": 200, "max_beds": 100}`,
			want: model.ParsedIntent{
				ResourceKind: model.KindUnspecified,
				MinBeds:      intPtr(200),
				MaxBeds:      intPtr(100),
				ResultLimit:  20000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := n.Normalize(decodeRaw(t, tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.want)
				t.Errorf("Normalize() = %s, want %s", gotJSON, wantJSON)
			}

			var fields []string
			for _, d := range diags {
				if d.Kind != ErrInvalidField {
					t.Errorf("diagnostic kind = %s, want %s", d.Kind, ErrInvalidField)
				}
				fields = append(fields, d.Field)
			}
			if !reflect.DeepEqual(fields, tt.wantDiags) {
				t.Errorf("diagnostic fields = %v, want %v", fields, tt.wantDiags)
			}
		})
	}
}

// Normalizing the canonical form of an intent must reproduce it exactly
func TestIntentNormalizer_Idempotent(t *testing.T) {
	n := NewIntentNormalizer(config.DefaultVocabulary(), config.UnboundedLimit)

	inputs := []string{
		`{"resource_type": "elderly", "district": "浦东", "min_beds": 100, "service_type": "民办"}`,
		`{"resource_type": "社区医院", "radius": 3000, "keyword": "枫林"}`,
		`{"service_type": "公建公营", "limit": 3, "max_beds": 50}`,
		`{"district": "陆家嘴", "service_type": "其他"}`,
		`{"resource_type": "unknown"}`,
		`{}`,
	}

	for _, input := range inputs {
		first, _ := n.Normalize(decodeRaw(t, input))

		canonical, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		second, diags := n.Normalize(decodeRaw(t, string(canonical)))

		if !reflect.DeepEqual(first, second) {
			t.Errorf("not idempotent for %s:\nfirst  %s\nsecond %+v", input, canonical, second)
		}
		if len(diags) != 0 {
			t.Errorf("canonical form of %s produced diagnostics: %v", input, diags)
		}
	}
}
