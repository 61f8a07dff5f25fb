package utils

import (
	"reflect"
	"testing"
)

var shanghaiDistricts = []string{
	"黄浦区", "徐汇区", "长宁区", "静安区", "普陀区", "虹口区", "杨浦区", "闵行区",
	"宝山区", "嘉定区", "浦东新区", "金山区", "松江区", "青浦区", "奉贤区", "崇明区",
}

func TestMatchDistrict(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "Exact", raw: "浦东新区", want: "浦东新区", wantOK: true},
		{name: "Short form", raw: "浦东", want: "浦东新区", wantOK: true},
		{name: "Short form with suffix", raw: "静安", want: "静安区", wantOK: true},
		{name: "Embedded full name", raw: "上海市徐汇区", want: "徐汇区", wantOK: true},
		{name: "Earliest of two", raw: "普陀区和长宁区", want: "普陀区", wantOK: true},
		{name: "Unknown", raw: "朝阳区", want: "", wantOK: false},
		{name: "Blank", raw: "  ", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchDistrict(tt.raw, shanghaiDistricts)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchDistrict(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMatchAliases(t *testing.T) {
	aliases := map[string][]string{
		"elderly": {"elderly", "养老", "养老院", "敬老院"},
		"health":  {"health", "医院", "卫生服务中心"},
		"both":    {"both", "all"},
	}

	tests := []struct {
		name string
		term string
		want []string
	}{
		{name: "Exact key", term: "Elderly", want: []string{"elderly"}},
		{name: "Exact alias", term: "敬老院", want: []string{"elderly"}},
		{name: "Contained alias", term: "社区卫生服务中心", want: []string{"health"}},
		{name: "Two kinds", term: "养老机构和医院", want: []string{"elderly", "health"}},
		{name: "Nothing", term: "pharmacy", want: nil},
		{name: "Empty", term: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchAliases(tt.term, aliases)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchAliases(%q) = %v, want %v", tt.term, got, tt.want)
			}
		})
	}
}

func TestBuildILikeAnyCondition(t *testing.T) {
	cond, params, next := BuildILikeAnyCondition([]string{"type"}, []string{"民建民营", "公建民营"}, 3)

	if cond != "(type ILIKE $3 OR type ILIKE $4)" {
		t.Errorf("condition = %q", cond)
	}
	if !reflect.DeepEqual(params, []interface{}{"%民建民营%", "%公建民营%"}) {
		t.Errorf("params = %v", params)
	}
	if next != 5 {
		t.Errorf("next index = %d, want 5", next)
	}

	cond, params, next = BuildILikeAnyCondition([]string{"district"}, []string{"100%_x"}, 12)
	if cond != "district ILIKE $12" || next != 13 {
		t.Errorf("single condition = %q, next = %d", cond, next)
	}
	if params[0] != `%100\%\_x%` {
		t.Errorf("escaped param = %v", params[0])
	}

	if cond, _, next := BuildILikeAnyCondition(nil, []string{"x"}, 1); cond != "" || next != 1 {
		t.Errorf("empty columns should produce no condition, got %q", cond)
	}
}
