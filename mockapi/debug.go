package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-llmops/client"
)

// Stream event names emitted by the debug endpoint.
const (
	EventAgentThought = "agent_thought"
	EventAgentMessage = "agent_message"
	EventAgentEnd     = "agent_end"
)

type AgentEvent struct {
	ID      string  `json:"id"`
	TaskID  string  `json:"task_id"`
	Event   string  `json:"event"`
	Thought string  `json:"thought,omitempty"`
	Answer  string  `json:"answer,omitempty"`
	Latency float64 `json:"latency"`
}

// Answer is the canned reply streamed back for a query. It mixes ASCII
// and multi-byte text so small chunk sizes split characters.
func Answer(query string) string {
	return fmt.Sprintf("You asked: %s. 这是一个流式回答 ✓", query)
}

// debugApp replies with an event stream: one thought, one message per
// answer token, then an end marker. Frames are written in pieces of
// chunkSize bytes, each flushed separately.
func (s *Server) debugApp(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, client.CodeValidateError, "query is required")
		return
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fail(c, http.StatusInternalServerError, client.CodeFail, "streaming unsupported")
		return
	}

	chunkSize, delay := s.StreamSettings()
	taskID := uuid.New().String()
	start := time.Now()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// initial comment so EventSource-style readers see the stream open
	_, _ = c.Writer.Write([]byte(": connected\n\n"))
	flusher.Flush()

	events := []AgentEvent{{
		ID:      uuid.New().String(),
		TaskID:  taskID,
		Event:   EventAgentThought,
		Thought: "app " + c.Param("app_id") + " is answering",
	}}
	for _, tok := range strings.SplitAfter(Answer(req.Query), " ") {
		events = append(events, AgentEvent{
			ID:     uuid.New().String(),
			TaskID: taskID,
			Event:  EventAgentMessage,
			Answer: tok,
		})
	}
	events = append(events, AgentEvent{ID: uuid.New().String(), TaskID: taskID, Event: EventAgentEnd})

	ctx := c.Request.Context()
	for _, ev := range events {
		ev.Latency = time.Since(start).Seconds()
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("[mock] marshal event", zap.Error(err))
			return
		}
		frame := []byte("event: " + ev.Event + "\ndata: " + string(data) + "\n\n")

		for len(frame) > 0 {
			n := chunkSize
			if n > len(frame) {
				n = len(frame)
			}
			if _, err := c.Writer.Write(frame[:n]); err != nil {
				return
			}
			flusher.Flush()
			frame = frame[n:]
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
