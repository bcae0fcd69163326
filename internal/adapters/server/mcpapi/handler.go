// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/lanes/internal/adapters/server/common"
	"github.com/hylla/lanes/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// defaultAgentID attributes MCP mutations that omit actor_id.
const defaultAgentID = "lanes-agent"

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, boards common.BoardService) (*Handler, error) {
	if boards == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, boards)
	registerItemTools(mcpSrv, boards)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "lanes"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// boardEnum lists accepted board argument values.
func boardEnum() []string {
	kinds := domain.BoardKinds()
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}

// registerBoardTools registers read-only board catalog, index, and ledger tools.
func registerBoardTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"lanes.list_boards",
			mcp.WithDescription("List every board with its ordered columns."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := boards.ListBoards(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"boards": rows})
			if err != nil {
				return nil, fmt.Errorf("encode list_boards result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.board_index",
			mcp.WithDescription("Return the ordered item ids of every column on one board."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board kind"), mcp.Enum(boardEnum()...)),
			mcp.WithString("assignee", mcp.Description("Optional assignee filter")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			board, err := req.RequireString("board")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			index, err := boards.BoardIndex(ctx, common.ListItemsRequest{
				Board:    board,
				Assignee: req.GetString("assignee", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"board": board, "columns": index})
			if err != nil {
				return nil, fmt.Errorf("encode board_index result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.list_change_events",
			mcp.WithDescription("List the newest activity-ledger entries for one board."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board kind"), mcp.Enum(boardEnum()...)),
			mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			board, err := req.RequireString("board")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			events, err := boards.ListChangeEvents(ctx, common.ListEventsRequest{
				Board: board,
				Limit: req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"events": events})
			if err != nil {
				return nil, fmt.Errorf("encode list_change_events result: %w", err)
			}
			return result, nil
		},
	)
}

// registerItemTools registers item list and mutation tools.
func registerItemTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"lanes.list_items",
			mcp.WithDescription("List items on one board with the column each item currently occupies."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board kind"), mcp.Enum(boardEnum()...)),
			mcp.WithString("assignee", mcp.Description("Optional assignee filter")),
			mcp.WithString("record_type", mcp.Description("contact|company|deal"), mcp.Enum("contact", "company", "deal")),
			mcp.WithString("record_id", mcp.Description("Optional linked record id")),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived items")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			board, err := req.RequireString("board")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			rows, err := boards.ListItems(ctx, common.ListItemsRequest{
				Board:           board,
				Assignee:        req.GetString("assignee", ""),
				RecordType:      req.GetString("record_type", ""),
				RecordID:        req.GetString("record_id", ""),
				IncludeArchived: req.GetBool("include_archived", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode list_items result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.create_item",
			mcp.WithDescription("Create one item on a board."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board kind"), mcp.Enum(boardEnum()...)),
			mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("status", mcp.Description("Initial status (defaults to the board's first status)")),
			mcp.WithString("due_at", mcp.Description("Optional RFC3339 timestamp")),
			mcp.WithString("priority", mcp.Description("low|medium|high|urgent"), mcp.Enum("low", "medium", "high", "urgent")),
			mcp.WithString("assignee", mcp.Description("Assignee name")),
			mcp.WithString("record_type", mcp.Description("contact|company|deal"), mcp.Enum("contact", "company", "deal")),
			mcp.WithString("record_id", mcp.Description("Linked record id")),
			mcp.WithString("actor_id", mcp.Description("Agent identity for the activity ledger")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Board       string `json:"board"`
				Title       string `json:"title"`
				Description string `json:"description"`
				Status      string `json:"status"`
				DueAt       string `json:"due_at"`
				Priority    string `json:"priority"`
				Assignee    string `json:"assignee"`
				RecordType  string `json:"record_type"`
				RecordID    string `json:"record_id"`
				ActorID     string `json:"actor_id"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Title) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "title" not found`), nil
			}
			item, err := boards.CreateItem(agentContext(ctx, args.ActorID), common.CreateItemRequest{
				Board:       args.Board,
				Title:       args.Title,
				Description: args.Description,
				Status:      args.Status,
				DueAt:       args.DueAt,
				Priority:    args.Priority,
				Assignee:    args.Assignee,
				RecordType:  args.RecordType,
				RecordID:    args.RecordID,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode create_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.move_item",
			mcp.WithDescription("Move one item to a column. Guarded moves return confirmation_required with a prompt unless confirm is true."),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithString("to_column", mcp.Required(), mcp.Description("Target column id")),
			mcp.WithBoolean("confirm", mcp.Description("Confirm a guarded move")),
			mcp.WithString("actor_id", mcp.Description("Agent identity for the activity ledger")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			itemID, err := req.RequireString("item_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			toColumn, err := req.RequireString("to_column")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			moved, err := boards.MoveItem(agentContext(ctx, req.GetString("actor_id", "")), common.MoveItemRequest{
				ItemID:   itemID,
				ToColumn: toColumn,
				Confirm:  req.GetBool("confirm", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(moved)
			if err != nil {
				return nil, fmt.Errorf("encode move_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.update_item",
			mcp.WithDescription("Apply a partial update to one item. Omitted fields are unchanged."),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("New status")),
			mcp.WithBoolean("completed", mcp.Description("Completion flag")),
			mcp.WithString("due_at", mcp.Description("RFC3339 timestamp; empty string clears the due date")),
			mcp.WithString("priority", mcp.Description("low|medium|high|urgent"), mcp.Enum("low", "medium", "high", "urgent")),
			mcp.WithString("assignee", mcp.Description("Assignee name")),
			mcp.WithString("actor_id", mcp.Description("Agent identity for the activity ledger")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ItemID      string  `json:"item_id"`
				Title       *string `json:"title"`
				Description *string `json:"description"`
				Status      *string `json:"status"`
				Completed   *bool   `json:"completed"`
				DueAt       *string `json:"due_at"`
				Priority    *string `json:"priority"`
				Assignee    *string `json:"assignee"`
				ActorID     string  `json:"actor_id"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ItemID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "item_id" not found`), nil
			}
			item, err := boards.UpdateItem(agentContext(ctx, args.ActorID), common.UpdateItemRequest{
				ItemID:      args.ItemID,
				Title:       args.Title,
				Description: args.Description,
				Status:      args.Status,
				Completed:   args.Completed,
				DueAt:       args.DueAt,
				Priority:    args.Priority,
				Assignee:    args.Assignee,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode update_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"lanes.delete_item",
			mcp.WithDescription("Archive (default) or hard-delete one item."),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithString("mode", mcp.Description("archive|hard"), mcp.Enum("archive", "hard")),
			mcp.WithString("actor_id", mcp.Description("Agent identity for the activity ledger")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			itemID, err := req.RequireString("item_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			err = boards.DeleteItem(agentContext(ctx, req.GetString("actor_id", "")), common.DeleteItemRequest{
				ItemID: itemID,
				Mode:   req.GetString("mode", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": itemID})
			if err != nil {
				return nil, fmt.Errorf("encode delete_item result: %w", err)
			}
			return result, nil
		},
	)
}

// agentContext attributes MCP mutations to an agent actor.
func agentContext(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = defaultAgentID
	}
	return common.WithActor(ctx, actorID, domain.ActorTypeAgent)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	var confirmErr *common.ConfirmationError
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.As(err, &confirmErr):
		return mcp.NewToolResultError("confirmation_required: " + confirmErr.Prompt + " (repeat with confirm=true)")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument-binding failures as deterministic tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
