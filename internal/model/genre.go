// Package model 定义了应用的核心数据模型。
package model

// Genre 表示文档的结构体裁，驱动分块边界与提示词模板的选择。
// 这是一个封闭枚举：未知输入一律归入 GenreGeneral。
type Genre string

const (
	GenreGeneral   Genre = "general"
	GenreAcademic  Genre = "academic"
	GenreTechnical Genre = "technical"
	GenreLegal     Genre = "legal"
)

// ParseGenre 将字符串解析为体裁，未知值显式回退到 general。
func ParseGenre(s string) Genre {
	switch Genre(s) {
	case GenreAcademic, GenreTechnical, GenreLegal:
		return Genre(s)
	default:
		return GenreGeneral
	}
}

// Intent 表示查询意图，与体裁共同决定提示词模板。
type Intent string

const (
	IntentGeneral    Intent = "general"
	IntentSummary    Intent = "summary"
	IntentExtraction Intent = "extraction"
)

// ParseIntent 将字符串解析为查询意图，未知值回退到 general。
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentSummary, IntentExtraction:
		return Intent(s)
	default:
		return IntentGeneral
	}
}
