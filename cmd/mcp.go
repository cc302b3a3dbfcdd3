package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"linkdex/internal/resolver"
	"linkdex/internal/watch"
	"linkdex/internal/workspace"
)

var flagMCPWatch bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing link resolution tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(nil)
	if err != nil {
		return err
	}

	ctrl := watch.NewController(eng.ws, eng.idx, eng.res, eng.cfg, watch.Options{
		ConfigPath: eng.cfgPath,
	})
	if _, err := ctrl.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("initial rebuild: %w", err)
	}

	if flagMCPWatch {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := ctrl.Run(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "watch stopped:", err)
			}
		}()
	}

	s := mcpserver.NewMCPServer("linkdex", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(documentLinksTool(), makeDocumentLinksHandler(eng))
	s.AddTool(decorationsTool(), makeDecorationsHandler(eng))
	s.AddTool(hoverTool(), makeHoverHandler(eng))
	s.AddTool(definitionTool(), makeDefinitionHandler(eng))
	s.AddTool(refreshIndexTool(), makeRefreshHandler(ctrl))
	s.AddTool(indexStatsTool(), makeStatsHandler(eng))

	return mcpserver.ServeStdio(s)
}

func init() {
	mcpCmd.Flags().BoolVar(&flagMCPWatch, "watch", false, "rebuild automatically on file changes while serving")
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func documentLinksTool() mcp.Tool {
	return mcp.NewTool("document_links",
		mcp.WithDescription("List every resolved link in a file as clickable targets with zero-based ranges, file URIs, and tooltips."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the workspace root"),
		),
	)
}

func decorationsTool() mcp.Tool {
	return mcp.NewTool("decorations",
		mcp.WithDescription("Classify every link match in a file into resolved and broken ranges, plus inline annotations extracted from destination previews. Ranges are zero-based."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the workspace root"),
		),
	)
}

func hoverTool() mcp.Tool {
	return mcp.NewTool("hover",
		mcp.WithDescription("Get the markdown hover preview for the link at a position: destination excerpt for resolved links, a notice for broken ones."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the workspace root"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Zero-based line number"),
		),
		mcp.WithNumber("column",
			mcp.Required(),
			mcp.Description("Zero-based byte column"),
		),
	)
}

func definitionTool() mcp.Tool {
	return mcp.NewTool("definition",
		mcp.WithDescription("List every indexed destination for the link at a position. Empty for broken links and off-link positions."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the workspace root"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Zero-based line number"),
		),
		mcp.WithNumber("column",
			mcp.Required(),
			mcp.Description("Zero-based byte column"),
		),
	)
}

func refreshIndexTool() mcp.Tool {
	return mcp.NewTool("refresh_index",
		mcp.WithDescription("Rebuild the destination index from the current rules and files."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Report the size and age of the destination index."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeDocumentLinksHandler(eng *engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, errResult := loadRequestDoc(eng, req)
		if errResult != nil {
			return errResult, nil
		}
		links := eng.prov.DocumentLinks(doc)
		return jsonResult(links)
	}
}

func makeDecorationsHandler(eng *engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, errResult := loadRequestDoc(eng, req)
		if errResult != nil {
			return errResult, nil
		}
		return jsonResult(eng.prov.Decorations(doc))
	}
}

func makeHoverHandler(eng *engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, errResult := loadRequestDoc(eng, req)
		if errResult != nil {
			return errResult, nil
		}
		pos := resolver.Position{Line: req.GetInt("line", 0), Col: req.GetInt("column", 0)}
		h := eng.prov.Hover(doc, pos)
		if h == nil {
			return mcp.NewToolResultText("No hover available at this position."), nil
		}
		return mcp.NewToolResultText(h.Markdown), nil
	}
}

func makeDefinitionHandler(eng *engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, errResult := loadRequestDoc(eng, req)
		if errResult != nil {
			return errResult, nil
		}
		pos := resolver.Position{Line: req.GetInt("line", 0), Col: req.GetInt("column", 0)}
		locs := eng.prov.Definition(doc, pos)
		return jsonResult(locs)
	}
}

func makeRefreshHandler(ctrl *watch.Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := ctrl.Rebuild(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Index rebuilt in %s: %d files, %d keys, %d locations.",
			stats.Duration.Round(time.Millisecond), stats.Files, stats.Keys, stats.Locations)), nil
	}
}

func makeStatsHandler(eng *engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats := eng.idx.Stats()
		return mcp.NewToolResultText(fmt.Sprintf(
			"## Index stats\n\n**Rules:** %d  \n**Files:** %d  \n**Keys:** %d  \n**Locations:** %d  \n**Last rebuild:** %s (generation %d)",
			len(eng.res.Rules()), stats.Files, stats.Keys, stats.Locations,
			stats.Duration.Round(time.Millisecond), stats.Generation)), nil
	}
}

// --- Request helpers ---

// loadRequestDoc reads the file named in the request. Relative paths
// resolve against the first workspace root.
func loadRequestDoc(eng *engine, req mcp.CallToolRequest) (*workspace.Document, *mcp.CallToolResult) {
	file := req.GetString("file", "")
	if file == "" {
		return nil, mcp.NewToolResultError("file is required")
	}
	if !filepath.IsAbs(file) && len(eng.ws.Roots()) > 0 {
		file = filepath.Join(eng.ws.Roots()[0], file)
	}
	doc, err := workspace.LoadDocument(file)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("cannot read file: %v", err))
	}
	return doc, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
