package api

import (
	"context"
	"net/http"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/transport/binding"
	httpx "github.com/mangohow/mcpgate/transport/http"
)

type ToolServiceHTTPServer interface {
	Health(ctx context.Context, req *HealthRequest) (*HealthReply, error)
	ListTools(ctx context.Context, req *ListToolsRequest) (*ListToolsReply, error)
	CallTool(ctx context.Context, req *CallToolRequest) (*CallToolReply, error)
}

var ToolServiceDesc = httpx.ServiceDesc{
	HandlerType: (*ToolServiceHTTPServer)(nil),
	Methods: []httpx.MethodDesc{
		{
			Method:  http.MethodGet,
			Path:    "/healthz",
			Handler: _ToolService_Health_HTTP_Handler,
		},
		{
			Method:  http.MethodGet,
			Path:    "/v1/tools",
			Handler: _ToolService_ListTools_HTTP_Handler,
		},
		{
			Method:  http.MethodPost,
			Path:    "/v1/tools/{name}/call",
			Handler: _ToolService_CallTool_HTTP_Handler,
		},
	},
}

func RegisterToolServiceHTTPServer(s *httpx.Server, srv ToolServiceHTTPServer) {
	s.RegisterService(&ToolServiceDesc, srv)
}

func _ToolService_Health_HTTP_Handler(ctx context.Context, srv any, middleware httpx.Middleware) (any, error) {
	in := new(HealthRequest)
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceHTTPServer).Health(ctx, req.(*HealthRequest))
	}

	return middleware(ctx, in, h)
}

func _ToolService_ListTools_HTTP_Handler(ctx context.Context, srv any, middleware httpx.Middleware) (any, error) {
	c := httpx.FromContext(ctx)
	in := new(ListToolsRequest)
	if err := c.BindQuery(in); err != nil {
		return nil, errors.Wrap(errors.KindDecode, errors.ReasonMalformedSyntax, "invalid query parameters", err)
	}

	h := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceHTTPServer).ListTools(ctx, req.(*ListToolsRequest))
	}

	return middleware(ctx, in, h)
}

func _ToolService_CallTool_HTTP_Handler(ctx context.Context, srv any, middleware httpx.Middleware) (any, error) {
	c := httpx.FromContext(ctx)
	in := new(CallToolRequest)
	if err := c.BindJSON(in); err != nil {
		if errors.Is(err, binding.ErrBodyTooLarge) {
			return nil, errors.Wrap(errors.KindDecode, errors.ReasonOutOfRange, "request body too large", err)
		}
		return nil, errors.Wrap(errors.KindDecode, errors.ReasonMalformedSyntax, "Invalid JSON message", err)
	}
	// 路径中的工具名优先
	if err := c.BindPathVar(in); err != nil {
		return nil, errors.Wrap(errors.KindDecode, errors.ReasonMalformedSyntax, "invalid path parameters", err)
	}

	h := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceHTTPServer).CallTool(ctx, req.(*CallToolRequest))
	}

	return middleware(ctx, in, h)
}
