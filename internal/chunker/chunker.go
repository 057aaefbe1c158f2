// Package chunker 实现了保留结构的自适应文本分块。
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docsage-go/internal/model"
	"docsage-go/pkg/ragerr"
)

// boundaries 是各体裁的边界分隔符表，按结构强度从强到弱排列，
// 空格兜底，字符硬切是最后手段。
var boundaries = map[model.Genre][]string{
	model.GenreGeneral:   {"\n\n", "\n", ". ", "! ", "? ", " "},
	model.GenreAcademic:  {"\n\n", "\n", ". ", "; ", ", ", " "},
	model.GenreTechnical: {"\n\n", "\n", ".\n", ". ", ":\n", ": ", " "},
	model.GenreLegal:     {"\n\n", "\n", ". ", "; ", " - ", " "},
}

var structureMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\d+\.`),
	regexp.MustCompile(`(?m)^[A-Z]\.`),
	regexp.MustCompile(`(?m)^-\s`),
	regexp.MustCompile(`(?m)^\*\s`),
	regexp.MustCompile(`(?m)^\w+:\s`),
}

// Options 配置分块行为，长度单位均为字符（rune）。
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MaxKeywords  int
}

// Chunker 按体裁特定的边界把文本切成带重叠的分块。
type Chunker struct {
	opts Options
}

// New 创建分块器；chunk_overlap ≥ chunk_size 属配置错误，直接拒绝。
func New(opts Options) (*Chunker, error) {
	if opts.ChunkSize <= 0 {
		return nil, ragerr.Configuration("chunk_size 必须为正数, 当前为 %d", opts.ChunkSize)
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, ragerr.Configuration("chunk_overlap (%d) 必须在 [0, chunk_size) 内", opts.ChunkOverlap)
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 5
	}
	return &Chunker{opts: opts}, nil
}

// Chunk 把文本切成有序分块：优先在容忍窗口 [size-tolerance, size] 内命中
// 最强的边界，逐级降级到弱边界，最后按字符数硬切（rune 安全，不会劈开多字节字符）。
// 相邻分块从前一块尾部取 overlap 个字符作为重叠，保留跨界上下文。
func (c *Chunker) Chunk(documentID, text string, genre model.Genre) ([]model.Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	seps, ok := boundaries[genre]
	if !ok {
		seps = boundaries[model.GenreGeneral]
	}

	size := c.opts.ChunkSize
	tolerance := size / 5
	if tolerance < 1 {
		tolerance = 1
	}

	// 第一遍：确定各分块在原文中的 rune 区间
	var spans [][2]int
	start := 0
	for {
		if len(runes)-start <= size {
			spans = append(spans, [2]int{start, len(runes)})
			break
		}
		end := cutPoint(runes, start, size, tolerance, seps)
		spans = append(spans, [2]int{start, end})

		// 重叠不得吞掉整个分块，保证向前推进
		overlap := c.opts.ChunkOverlap
		if overlap >= end-start {
			overlap = end - start - 1
		}
		start = end - overlap
	}

	// 第二遍：组装分块与元数据
	total := len(spans)
	chunks := make([]model.Chunk, 0, total)
	for i, span := range spans {
		chunkText := string(runes[span[0]:span[1]])
		chunks = append(chunks, model.Chunk{
			ID:                fmt.Sprintf("%s_%d", documentID, i),
			DocumentID:        documentID,
			Ordinal:           i,
			Text:              chunkText,
			CharStart:         span[0],
			CharEnd:           span[1],
			Genre:             genre,
			Keywords:          ExtractKeywords(chunkText, c.opts.MaxKeywords),
			PositionLabel:     fmt.Sprintf("%d/%d", i+1, total),
			Position:          positionOf(i, total),
			TotalChunks:       total,
			ContainsStructure: hasStructureMarkers(chunkText),
		})
	}
	return chunks, nil
}

// cutPoint 在 [start+size-tolerance, start+size] 窗口内寻找切点：
// 依次尝试每个分隔符的最后一次出现，切在分隔符之后；全部落空则硬切在 start+size。
func cutPoint(runes []rune, start, size, tolerance int, seps []string) int {
	window := string(runes[start : start+size])
	minCut := size - tolerance
	for _, sep := range seps {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(sep)
		if cut >= minCut {
			return start + cut
		}
		// 最后一次出现已在窗口之下，更早的只会更靠前，换下一个更弱的分隔符
	}
	return start + size
}

func positionOf(i, total int) string {
	switch {
	case i == 0:
		return "start"
	case i == total-1:
		return "end"
	default:
		return "middle"
	}
}

func hasStructureMarkers(text string) bool {
	for _, p := range structureMarkers {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
