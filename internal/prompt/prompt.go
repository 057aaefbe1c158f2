// Package prompt 负责按文档体裁与问题意图选择提示词模板并完成装配。
package prompt

import (
	"strings"
	"sync"

	"docsage-go/internal/model"
	"docsage-go/pkg/log"
)

// Template 是带 {context}/{question}/{history} 占位符的提示词模板。
type Template struct {
	Key  string
	Text string
}

// Render 填充占位符生成最终提示词。history 为空时连同其标题一起移除。
func (t Template) Render(contextText, question, history string) string {
	text := t.Text
	if history == "" {
		text = strings.ReplaceAll(text, historyBlock, "")
	}
	r := strings.NewReplacer(
		"{context}", contextText,
		"{question}", question,
		"{history}", history,
	)
	return r.Replace(text)
}

const historyBlock = "Conversation so far:\n{history}\n\n"

// NoContextKey 是检索无命中时使用的模板键，可通过 Register 覆盖答复文案。
const NoContextKey = "no_context"

// 内置模板。意图模板（summary/extraction）优先于体裁模板。
var builtins = map[string]Template{
	"general": {Key: "general", Text: historyBlock +
		"Answer the question using only the reference content below. " +
		"If the reference does not contain the answer, say so explicitly.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nAnswer:"},
	"academic": {Key: "academic", Text: historyBlock +
		"You are reading an academic paper. Answer precisely, citing the sections, " +
		"findings and cited works that appear in the reference content. " +
		"Do not speculate beyond what the text supports.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nAnswer:"},
	"technical": {Key: "technical", Text: historyBlock +
		"You are reading technical documentation. Answer with concrete steps, " +
		"commands and code where the reference provides them, and preserve " +
		"identifiers and code blocks verbatim.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nAnswer:"},
	"legal": {Key: "legal", Text: historyBlock +
		"You are reading a legal document. Answer by quoting the relevant articles " +
		"or clauses, keeping their numbering, and avoid interpreting beyond the text.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nAnswer:"},
	"summary": {Key: "summary", Text: historyBlock +
		"Summarize the reference content below, keeping the key points and their order. " +
		"Use the question to focus the summary if it names a topic.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nSummary:"},
	"extraction": {Key: "extraction", Text: historyBlock +
		"Extract the specific facts the question asks for from the reference content, " +
		"as a concise list. Only include facts that literally appear in the reference.\n\n" +
		"Reference content:\n{context}\n\n" +
		"Question: {question}\n\nExtracted facts:"},
	NoContextKey: {Key: NoContextKey,
		Text: "No relevant content was found in the knowledge base for this question."},
}

// Selector 根据体裁与意图选择模板，支持运行期注册覆盖。
type Selector interface {
	// Select 返回应使用的模板：意图优先，其次体裁，最后回退 general。
	Select(genre model.Genre, intent model.Intent) Template
	// Lookup 按键返回模板，供不走体裁/意图匹配的路径（如 no_context）使用。
	Lookup(key string) (Template, bool)
	// Register 注册或覆盖一个模板
	Register(tpl Template)
}

type selector struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewSelector 创建带全部内置模板的选择器。
func NewSelector() Selector {
	s := &selector{templates: make(map[string]Template, len(builtins))}
	for k, v := range builtins {
		s.templates[k] = v
	}
	return s
}

func (s *selector) Select(genre model.Genre, intent model.Intent) Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 步骤1: summary/extraction 意图直接决定模板
	if intent != model.IntentGeneral {
		if tpl, ok := s.templates[string(intent)]; ok {
			return tpl
		}
	}
	// 步骤2: 按体裁选择
	if tpl, ok := s.templates[string(genre)]; ok {
		return tpl
	}
	// 步骤3: 显式回退到 general
	log.Warnf("[Prompt] 体裁 %s / 意图 %s 没有对应模板，回退 general", genre, intent)
	return s.templates["general"]
}

func (s *selector) Lookup(key string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[key]
	return tpl, ok
}

func (s *selector) Register(tpl Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.Key] = tpl
}

// BuildContext 把检索片段拼接成模板的 {context} 文本，保留来源标注。
func BuildContext(chunks []model.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(c.Filename)
		b.WriteString(" ")
		b.WriteString(c.PositionLabel)
		b.WriteString("] ")
		b.WriteString(c.Text)
	}
	return b.String()
}
