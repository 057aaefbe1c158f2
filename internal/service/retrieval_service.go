package service

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"docsage-go/internal/config"
	"docsage-go/internal/memory"
	"docsage-go/internal/model"
	"docsage-go/internal/prompt"
	"docsage-go/pkg/embedding"
	"docsage-go/pkg/llm"
	"docsage-go/pkg/log"
	"docsage-go/pkg/perf"
	"docsage-go/pkg/ragerr"
)

// selector 里没有注册 no_context 模板时的兜底答复文案。
const noContextAnswer = "No relevant content was found in the knowledge base for this question."

// 来源预览的最大 rune 数
const previewRunes = 200

// RetrievalService 接口定义了问答检索操作。
type RetrievalService interface {
	// Query 执行完整问答流程并返回最终答案。
	Query(ctx context.Context, req model.QueryRequest) (*model.Answer, error)
	// QueryStream 与 Query 相同，但生成阶段把分块流式写入 writer。
	QueryStream(ctx context.Context, req model.QueryRequest, writer llm.MessageWriter) (*model.Answer, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	index           VectorIndex
	selector        prompt.Selector
	llmClient       llm.Client
	sessions        *memory.Manager
	monitor         *perf.Monitor
	cfg             config.RetrievalConfig
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(
	embeddingClient embedding.Client,
	index VectorIndex,
	selector prompt.Selector,
	llmClient llm.Client,
	sessions *memory.Manager,
	monitor *perf.Monitor,
	cfg config.RetrievalConfig,
) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		index:           index,
		selector:        selector,
		llmClient:       llmClient,
		sessions:        sessions,
		monitor:         monitor,
		cfg:             cfg,
	}
}

// sanitizeQuestion 去掉控制字符并压缩首尾空白，换行与制表符保留。
func sanitizeQuestion(q string) string {
	var b strings.Builder
	for _, r := range q {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func (s *retrievalService) validateQuestion(q string) (string, error) {
	cleaned := sanitizeQuestion(q)
	n := utf8.RuneCountInString(cleaned)
	if n < 3 {
		return "", ragerr.Validation("问题过短, 至少 3 个字符, 当前 %d 个", n)
	}
	maxLen := s.cfg.MaxQuestionLen
	if maxLen <= 0 {
		maxLen = 1000
	}
	if n > maxLen {
		return "", ragerr.Validation("问题过长, 最多 %d 个字符, 当前 %d 个", maxLen, n)
	}
	return cleaned, nil
}

// dominantGenre 返回命中分块中最常见的体裁，并列时取排名靠前者。
func dominantGenre(chunks []model.RetrievedChunk) model.Genre {
	if len(chunks) == 0 {
		return model.GenreGeneral
	}
	counts := make(map[model.Genre]int)
	best := chunks[0].Genre
	for _, c := range chunks {
		counts[c.Genre]++
		if counts[c.Genre] > counts[best] {
			best = c.Genre
		}
	}
	return best
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}

func buildSources(chunks []model.RetrievedChunk) []model.SourceRef {
	sources := make([]model.SourceRef, len(chunks))
	for i, c := range chunks {
		sources[i] = model.SourceRef{
			ChunkID:       c.VectorID,
			Filename:      c.Filename,
			PositionLabel: c.PositionLabel,
			Keywords:      c.Keywords,
			Preview:       preview(c.Text),
		}
	}
	return sources
}

// historyMessages 把近期交互转换为按时间先后排列的角色消息。
// exchanges 参数是最新在前的顺序。
func historyMessages(exchanges []model.Exchange) []llm.Message {
	if len(exchanges) == 0 {
		return nil
	}
	messages := make([]llm.Message, 0, len(exchanges)*2)
	for i := len(exchanges) - 1; i >= 0; i-- {
		messages = append(messages,
			llm.Message{Role: "user", Content: exchanges[i].Question},
			llm.Message{Role: "assistant", Content: exchanges[i].Answer},
		)
	}
	return messages
}

func (s *retrievalService) Query(ctx context.Context, req model.QueryRequest) (*model.Answer, error) {
	return s.run(ctx, req, nil)
}

func (s *retrievalService) QueryStream(ctx context.Context, req model.QueryRequest, writer llm.MessageWriter) (*model.Answer, error) {
	return s.run(ctx, req, writer)
}

// run 是问答流程的主函数，writer 非 nil 时生成阶段走流式。
func (s *retrievalService) run(ctx context.Context, req model.QueryRequest, writer llm.MessageWriter) (*model.Answer, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	stageMillis := make(map[string]int64)
	track := func(stage string) func() {
		done := s.monitor.Track("query." + stage)
		return func() { stageMillis[stage] = done().Milliseconds() }
	}

	log.Infof("[RetrievalService] 开始处理问题, session: %s, intent: %s", sessionID, req.Intent)

	// 1. 清洗并校验问题
	log.Info("[RetrievalService] 步骤1: 校验问题")
	stop := track("validate")
	question, err := s.validateQuestion(req.Question)
	stop()
	if err != nil {
		return nil, err
	}

	// 2. 取会话近期上下文
	conv := s.sessions.Session(ctx, sessionID)
	recent := conv.RelevantContext(question, s.cfg.HistoryContext)

	// 3. 向量化问题
	log.Info("[RetrievalService] 步骤2: 向量化问题")
	stop = track("embed_query")
	queryVector, err := s.embeddingClient.EmbedOne(ctx, question)
	stop()
	if err != nil {
		log.Errorf("[RetrievalService] 向量化问题失败: %v", err)
		return nil, err
	}

	// 4. 检索向量索引
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	log.Infof("[RetrievalService] 步骤3: 检索向量索引, topK: %d", topK)
	stop = track("search")
	chunks, err := s.index.Search(ctx, queryVector, topK)
	stop()
	if err != nil {
		log.Errorf("[RetrievalService] 检索失败: %v", err)
		return nil, err
	}
	log.Infof("[RetrievalService] 步骤3: 命中 %d 个分块", len(chunks))

	// 5. 无命中时走 no_context 模板直接答复，不调用生成服务
	if len(chunks) == 0 {
		log.Infof("[RetrievalService] 没有命中任何分块, 返回无上下文答复, session: %s", sessionID)
		tpl, ok := s.selector.Lookup(prompt.NoContextKey)
		if !ok {
			tpl = prompt.Template{Key: prompt.NoContextKey, Text: noContextAnswer}
		}
		answer := &model.Answer{
			Text: tpl.Render("", question, ""),
			Meta: model.AnswerMeta{
				NoContext:   true,
				Genre:       model.GenreGeneral,
				TemplateKey: tpl.Key,
				StageMillis: stageMillis,
			},
		}
		s.remember(sessionID, question, answer)
		return answer, nil
	}

	// 6. 按命中体裁与问题意图选择模板
	log.Info("[RetrievalService] 步骤4: 选择提示词模板")
	stop = track("select_template")
	genre := dominantGenre(chunks)
	intent := model.ParseIntent(req.Intent)
	tpl := s.selector.Select(genre, intent)
	contextText := prompt.BuildContext(chunks)
	historyText := memory.FormatHistory(recent)
	finalPrompt := tpl.Render(contextText, question, historyText)
	stop()
	log.Infof("[RetrievalService] 步骤4: 模板 %s (genre: %s, intent: %s)", tpl.Key, genre, intent)

	// 7. 调用生成服务
	log.Info("[RetrievalService] 步骤5: 调用生成服务")
	stop = track("generate")
	history := historyMessages(recent)
	var text string
	if writer != nil {
		text, err = s.llmClient.StreamGenerate(ctx, finalPrompt, history, writer)
	} else {
		text, err = s.llmClient.Generate(ctx, finalPrompt, history)
	}
	stop()
	if err != nil {
		log.Errorf("[RetrievalService] 生成失败: %v", err)
		return nil, err
	}

	// 8. 组装答案
	stop = track("assemble")
	answer := &model.Answer{
		Text:    text,
		Sources: buildSources(chunks),
		Meta: model.AnswerMeta{
			Genre:        genre,
			TemplateKey:  tpl.Key,
			SourcesCount: len(chunks),
			StageMillis:  stageMillis,
		},
	}
	stop()

	s.remember(sessionID, question, answer)
	log.Infof("[RetrievalService] 问答完成, session: %s, sources: %d", sessionID, len(chunks))
	return answer, nil
}

// remember 在回答成功后追加会话记忆。
// 刻意使用 context.Background()：请求取消不应丢掉已经产出的交互。
func (s *retrievalService) remember(sessionID, question string, answer *model.Answer) {
	s.sessions.AppendExchange(context.Background(), sessionID, model.Exchange{
		Question:    question,
		Answer:      answer.Text,
		Sources:     answer.Sources,
		Timestamp:   time.Now(),
		Performance: answer.Meta.StageMillis,
	})
}
