package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docsage-go/internal/model"
	"docsage-go/internal/service"
	"docsage-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 问答连接：
// 客户端发送 JSON 编码的 QueryRequest，服务端以文本帧流式返回答案分块，
// 最后发送一帧 done 消息携带来源与元数据。
type ChatHandler struct {
	retrievalService service.RetrievalService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(retrievalService service.RetrievalService) *ChatHandler {
	return &ChatHandler{retrievalService: retrievalService}
}

type wsEnvelope struct {
	Type      string            `json:"type"` // "done" 或 "error"
	Message   string            `json:"message,omitempty"`
	Sources   []model.SourceRef `json:"sources,omitempty"`
	Meta      *model.AnswerMeta `json:"meta,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) {
	env.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("WebSocket 连接已建立")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req model.QueryRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Question == "" {
			writeEnvelope(conn, wsEnvelope{Type: "error", Message: "无效的请求消息"})
			continue
		}
		log.Infof("[ChatHandler] 收到流式问答请求, session: %s", req.SessionID)

		answer, err := h.retrievalService.QueryStream(c.Request.Context(), req, conn)
		if err != nil {
			log.Errorf("[ChatHandler] 流式问答失败, session: %s, error: %v", req.SessionID, err)
			writeEnvelope(conn, wsEnvelope{Type: "error", Message: err.Error()})
			continue
		}

		// 无命中时没有流式分块，把固定答复作为唯一一帧发出
		if answer.Meta.NoContext {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(answer.Text))
		}
		writeEnvelope(conn, wsEnvelope{
			Type:    "done",
			Sources: answer.Sources,
			Meta:    &answer.Meta,
		})
	}
}
