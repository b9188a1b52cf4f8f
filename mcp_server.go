package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alc6/pgtemplate/config"
)

// StartMCPServer serves template tools over stdio
func StartMCPServer(cfg config.Config) error {
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			slog.Error("failed to close workspace", "error", err)
		}
	}()

	s := newMCPServer(&mcpHandlers{
		discoverer: ws.Discoverer,
		builder:    ws.Templates,
		cloner:     ws.Clones,
	})

	slog.Info("starting pgtemplate mcp server", "repository", ws.Discoverer.Root())
	return server.ServeStdio(s)
}

type mcpHandlers struct {
	discoverer FileDiscoverer
	builder    TemplateBuilder
	cloner     DatabaseCloner
}

func newMCPServer(h *mcpHandlers) *server.MCPServer {
	s := server.NewMCPServer(
		"pgtemplate",
		version,
		server.WithToolCapabilities(false),
	)

	templateStatusTool := mcp.NewTool("template_status",
		mcp.WithDescription("Report whether a template database is current with its SQL files"),
		mcp.WithString("template_name",
			mcp.Required(),
			mcp.Description("Name of the template database"),
		),
	)
	s.AddTool(templateStatusTool, h.handleTemplateStatus)

	cloneDatabaseTool := mcp.NewTool("clone_database",
		mcp.WithDescription("Rebuild a template if its SQL files changed, then clone it into a new database"),
		mcp.WithString("template_name",
			mcp.Required(),
			mcp.Description("Name of the template database"),
		),
		mcp.WithString("clone_name",
			mcp.Description("Name of the new database (default: generated from the template name)"),
		),
		mcp.WithString("env",
			mcp.Description("Environment whose seed directories are included"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Rebuild the template even when it is current"),
		),
	)
	s.AddTool(cloneDatabaseTool, h.handleCloneDatabase)

	return s
}

// handleTemplateStatus processes the template_status tool request
func (h *mcpHandlers) handleTemplateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("template_name")
	if err != nil {
		return mcp.NewToolResultError("template_name parameter is required"), nil
	}

	status, err := templateStatus(ctx, h.builder, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output, err := FormatStatusJSON(status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(output), nil
}

// handleCloneDatabase processes the clone_database tool request
func (h *mcpHandlers) handleCloneDatabase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("template_name")
	if err != nil {
		return mcp.NewToolResultError("template_name parameter is required"), nil
	}

	opts := cloneOptions{
		buildOptions: buildOptions{
			Template: name,
			Env:      request.GetString("env", ""),
			Force:    request.GetBool("force", false),
		},
		Output: request.GetString("clone_name", ""),
	}

	output, err := cloneDatabase(ctx, h.discoverer, h.builder, h.cloner, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("cloned template %s into %s", name, output)), nil
}
