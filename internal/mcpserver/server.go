// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes flashcard tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/assets"
	"github.com/starford/flashdeck/internal/history"
	"github.com/starford/flashdeck/internal/models"
	"github.com/starford/flashdeck/internal/storage"
)

const usageURI = "flashdeck://usage"

// Resolver lists the card folder and resolves words against it.
type Resolver interface {
	ListImages(ctx context.Context, folderID string) ([]models.FileEntry, error)
	Resolve(ctx context.Context, folderID, words string) (*assets.Result, error)
}

// Server wraps the MCP server with flashcard tools.
type Server struct {
	mcp      *server.MCPServer
	resolver Resolver
	folderID string
	history  history.Recorder
	cards    *storage.Local
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithHistory exposes and records resolutions in rec.
func WithHistory(rec history.Recorder) Option {
	return func(s *Server) { s.history = rec }
}

// WithCards enables the upload_card tool on the local card folder.
func WithCards(cards *storage.Local) Option {
	return func(s *Server) { s.cards = cards }
}

// New creates a new MCP server with all flashcard tools registered.
func New(resolver Resolver, folderID string, opts ...Option) *Server {
	s := &Server{resolver: resolver, folderID: folderID}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"flashdeck",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_words",
		mcp.WithDescription("Resolve comma-separated words to flashcard image URLs. "+
			"Matching is case-insensitive on the file name without extension; "+
			"unmatched words are reported under \"missed\"."),
		mcp.WithString("words", mcp.Required(), mcp.Description("Comma-separated words, e.g. \"apple, cat\"")),
	), s.resolveWords)

	s.mcp.AddTool(mcp.NewTool("list_images",
		mcp.WithDescription("List the image files of the card folder."),
	), s.listImages)

	s.mcp.AddTool(mcp.NewTool("recent_resolutions",
		mcp.WithDescription("Show the most recent resolution requests, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max records (default 20)")),
	), s.recentResolutions)

	s.mcp.AddTool(mcp.NewTool("get_usage",
		mcp.WithDescription("Returns how words are matched to flashcard images."),
	), s.getUsage)

	if s.cards != nil {
		s.mcp.AddTool(mcp.NewTool("upload_card",
			mcp.WithDescription("Add an image to the card folder from an http(s) URL or a base64 data URI."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
			mcp.WithString("word", mcp.Description("Word the card should match; becomes the file name stem")),
		), s.uploadCard)
	}

	s.mcp.AddResource(
		mcp.NewResource(usageURI, "Usage Guide",
			mcp.WithResourceDescription("How words are matched to flashcard images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) resolveWords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	words, err := req.RequireString("words")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.resolver.Resolve(ctx, s.folderID, words)
	s.record(ctx, words, res, err)
	switch {
	case errors.Is(err, apperr.ErrNoMatch):
		return mcp.NewToolResultError("no matching images found for: " + strings.Join(res.Missed, ", ")), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) record(ctx context.Context, words string, res *assets.Result, err error) {
	if s.history == nil {
		return
	}
	rec := history.Record{SessionID: "mcp", Words: words, Outcome: history.OutcomeFor(err)}
	if res != nil {
		rec.Matched = len(res.Deck)
		rec.Missed = res.Missed
	}
	_ = s.history.Record(ctx, rec)
}

func (s *Server) listImages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.resolver.ListImages(ctx, s.folderID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no images found"), nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) recentResolutions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("history is disabled"), nil
	}
	records, err := s.history.Recent(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records), nil
}

func (s *Server) getUsage(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UsageGuide), nil
}

func (s *Server) readUsageResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      usageURI,
			MIMEType: "text/markdown",
			Text:     UsageGuide,
		},
	}, nil
}
