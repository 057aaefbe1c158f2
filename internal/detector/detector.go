// Package detector 根据文本的结构特征识别文档体裁。
package detector

import (
	"regexp"

	"docsage-go/internal/model"
)

// rule 是一条体裁判定规则：命中数达到 minCount 的模式即判定为该体裁。
type rule struct {
	genre    model.Genre
	patterns []*regexp.Regexp
	minCount int
}

// Detector 是确定性的、无状态的体裁检测器。
// 规则按优先级排列，第一条命中数达到阈值的规则获胜；全部未达标时回退 general。
type Detector struct {
	rules []rule
}

// New 创建带内置规则表的检测器。
func New() *Detector {
	return &Detector{
		rules: []rule{
			{
				// 法律文本：条款编号、章节条文、"whereas/hereinafter" 类措辞
				genre: model.GenreLegal,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?mi)\b(?:article|art\.)\s+\d+`),
					regexp.MustCompile(`(?mi)\bclause\s+\d+`),
					regexp.MustCompile(`(?mi)^\s*§+\s*\d+`),
					regexp.MustCompile(`(?mi)\b(?:whereas|hereinafter|pursuant to)\b`),
				},
				minCount: 3,
			},
			{
				// 学术文本：摘要 / 引言 / 参考文献等章节标题与编号小节
				genre: model.GenreAcademic,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?mi)^\s*(?:abstract|introduction|conclusion|references|bibliography|acknowledg?ements)\s*$`),
					regexp.MustCompile(`(?m)^\s*\d+(?:\.\d+)+\s+\p{Lu}`),
					regexp.MustCompile(`(?mi)\bet al\.`),
					regexp.MustCompile(`(?m)\[\d+\]`),
				},
				minCount: 3,
			},
			{
				// 技术文档：代码围栏、函数/类声明、命令行提示、API 措辞
				genre: model.GenreTechnical,
				patterns: []*regexp.Regexp{
					regexp.MustCompile("(?m)^```"),
					regexp.MustCompile(`(?m)^\s*(?:func|def|class|import|package)\s+\w+`),
					regexp.MustCompile(`(?m)^\s*\$\s+\w+`),
					regexp.MustCompile(`(?i)\b(?:API|endpoint|configuration|installation)\b`),
				},
				minCount: 3,
			},
		},
	}
}

// Detect 扫描文本并返回其体裁。幂等、无副作用、永不报错：
// 没有任何结构特征的文本（包括空串）一律判为 general。
func (d *Detector) Detect(text string) model.Genre {
	if text == "" {
		return model.GenreGeneral
	}
	for _, r := range d.rules {
		count := 0
		for _, p := range r.patterns {
			count += len(p.FindAllStringIndex(text, r.minCount+1))
			if count >= r.minCount {
				return r.genre
			}
		}
	}
	return model.GenreGeneral
}
