package api

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/gmcp"
)

type HealthRequest struct{}

type HealthReply struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Tools    int    `json:"tools"`
}

type ListToolsRequest struct {
	Name string `json:"name"`
}

type ListToolsReply struct {
	Tools []gmcp.ToolInfo `json:"tools"`
}

type CallToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type CallToolReply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionCounter interface {
	SessionCount() int
}

// ToolService 一次性的 HTTP 工具调用, 与长连接共用同一个 Dispatcher
type ToolService struct {
	dispatcher *gmcp.Dispatcher
	sessions   SessionCounter
}

func NewToolService(d *gmcp.Dispatcher, sessions SessionCounter) *ToolService {
	return &ToolService{dispatcher: d, sessions: sessions}
}

func (s *ToolService) Health(ctx context.Context, req *HealthRequest) (*HealthReply, error) {
	reply := &HealthReply{
		Status: "ok",
		Tools:  s.dispatcher.Registry().Len(),
	}
	if s.sessions != nil {
		reply.Sessions = s.sessions.SessionCount()
	}

	return reply, nil
}

// ListTools name 非空时只返回名字包含 name 的工具
func (s *ToolService) ListTools(ctx context.Context, req *ListToolsRequest) (*ListToolsReply, error) {
	all := gmcp.ListTools(s.dispatcher.Registry())
	if req.Name == "" {
		return &ListToolsReply{Tools: all}, nil
	}

	tools := make([]gmcp.ToolInfo, 0, len(all))
	for _, t := range all {
		if strings.Contains(t.Name, req.Name) {
			tools = append(tools, t)
		}
	}

	return &ListToolsReply{Tools: tools}, nil
}

func (s *ToolService) CallTool(ctx context.Context, req *CallToolRequest) (*CallToolReply, error) {
	result := s.dispatcher.Dispatch(ctx, &gmcp.ToolCall{
		ID:        uuid.NewString(),
		SessionID: "http",
		Name:      req.Name,
		Arguments: req.Arguments,
	})
	if result.IsError() {
		return nil, errors.FromReason(result.Error.Kind, result.Error.Message)
	}

	return &CallToolReply{Role: result.Role, Content: result.Content}, nil
}
