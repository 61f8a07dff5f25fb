package service

import (
	"fmt"
	"strings"

	"carefinder/internal/config"
)

// userPromptPrefix precedes the raw user text in every completion request
const userPromptPrefix = "用户查询: "

type promptExample struct {
	query  string
	output string
}

var promptExamples = []promptExample{
	{"找浦东新区床位超过100张的养老院", `{"resource_type": "elderly", "district": "浦东新区", "min_beds": 100, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 20000}`},
	{"附近3公里内的社区医院", `{"resource_type": "health", "district": null, "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": 3000, "limit": 20000}`},
	{"静安区公办的敬老院", `{"resource_type": "elderly", "district": "静安区", "min_beds": null, "max_beds": null, "keyword": "敬老院", "service_type": "公办", "radius": null, "limit": 20000}`},
	{"徐汇区有哪些养老院", `{"resource_type": "elderly", "district": "徐汇区", "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 20000}`},
	{"找离我最近的3家民办养老院", `{"resource_type": "elderly", "district": null, "min_beds": null, "max_beds": null, "keyword": null, "service_type": "民办", "radius": null, "limit": 3}`},
	{"最近的养老院", `{"resource_type": "elderly", "district": null, "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 1}`},
	{"床位50到100张的民办养老院", `{"resource_type": "elderly", "district": null, "min_beds": 50, "max_beds": 100, "keyword": null, "service_type": "民办", "radius": null, "limit": 20000}`},
	{"嘉定区公建民营的护理院", `{"resource_type": "elderly", "district": "嘉定区", "min_beds": null, "max_beds": null, "keyword": "护理院", "service_type": "公建民营", "radius": null, "limit": 20000}`},
	{"附近5公里有什么养老机构和医院", `{"resource_type": "both", "district": null, "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": 5000, "limit": 20000}`},
	{"奉贤区有几个卫生中心", `{"resource_type": "health", "district": "奉贤区", "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 20000}`},
	{"找10家床位最多的养老院", `{"resource_type": "elderly", "district": null, "min_beds": null, "max_beds": null, "keyword": null, "service_type": null, "radius": null, "limit": 10}`},
	{"宝山区小型养老院床位50张以下", `{"resource_type": "elderly", "district": "宝山区", "min_beds": null, "max_beds": 50, "keyword": null, "service_type": null, "radius": null, "limit": 20000}`},
}

// BuildSystemPrompt renders the fixed system instruction from the vocabulary.
// The result depends only on v, so it is built once at startup.
func BuildSystemPrompt(v *config.Vocabulary) string {
	var b strings.Builder

	b.WriteString("你是一个上海市养老和医疗资源查询助手。你的任务是将用户的自然语言查询解析为结构化的JSON格式。\n\n")

	b.WriteString("可用的资源类型：\n")
	b.WriteString("- elderly: 养老服务机构\n")
	b.WriteString("- health: 社区卫生服务中心\n")
	b.WriteString("- both: 两者都查询\n\n")

	fmt.Fprintf(&b, "你要灵活辨别近义词，比如%s等都指养老服务机构；%s等都指社区卫生服务中心。\n\n",
		quoteJoin(v.ResourceKinds["elderly"]), quoteJoin(v.ResourceKinds["health"]))

	fmt.Fprintf(&b, "上海市的区县包括：\n%s\n\n", strings.Join(v.Districts, "、"))

	b.WriteString("养老机构运营类型说明：\n")
	fmt.Fprintf(&b, "- 数据库中的实际类型：%s\n", strings.Join(v.CanonicalLabels, "、"))
	for _, cat := range v.Ownership {
		fmt.Fprintf(&b, "- 用户说%s时，service_type 设为 \"%s\"（系统会匹配：%s）\n",
			quoteJoin(cat.Terms), cat.Display, strings.Join(cat.Labels, "、"))
	}
	b.WriteString("- 如果用户说出具体类型，service_type 原样输出该类型，系统会精确匹配\n\n")

	b.WriteString("请将用户查询解析为以下JSON格式（只输出JSON，不要其他内容）：\n")
	b.WriteString(`{
    "resource_type": "elderly/health/both",
    "district": "区县名称或null",
    "min_beds": 最小床位数或null,
    "max_beds": 最大床位数或null,
    "keyword": "关键词或null",
    "service_type": "运营类型或null",
    "radius": 搜索半径米数或null,
    "limit": 返回数量
}`)
	b.WriteString("\n\n示例：\n")
	for _, ex := range promptExamples {
		fmt.Fprintf(&b, "用户: \"%s\"\n输出: %s\n\n", ex.query, ex.output)
	}

	fmt.Fprintf(&b, "注意：\n")
	fmt.Fprintf(&b, "- 当用户说\"找最近的X家\"或\"离我最近的X个\"时，X是limit，radius必须为null\n")
	fmt.Fprintf(&b, "- 当用户说\"X公里内\"时，X*1000是radius，limit设为%d\n", config.UnboundedLimit)
	fmt.Fprintf(&b, "- 如果用户只说\"最近\"没有指定数量，limit设为1，radius设为null\n")
	fmt.Fprintf(&b, "- 没有提到数量时，limit设为%d\n", config.UnboundedLimit)

	return b.String()
}

// BuildUserPrompt wraps the raw user text
func BuildUserPrompt(query string) string {
	return userPromptPrefix + query
}

func quoteJoin(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, "\""+t+"\"")
	}
	return strings.Join(quoted, "、")
}
