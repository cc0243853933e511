// Package mcptools serves pulpit's Scripture lookups as Model Context
// Protocol tools, over stdio or streamable HTTP.
//
// Three tools are registered:
//   - "lookup_reference"   : fetch the text of a formatted reference.
//   - "extract_references" : find the references cited in free text.
//   - "search_verses"      : find verses close in meaning to a phrase.
//
// All handlers are safe for concurrent use.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/pulpit/internal/fusion"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
)

// defaultSearchLimit is used when search_verses is called without a limit.
const defaultSearchLimit = 5

// LookupInput is the input of "lookup_reference".
type LookupInput struct {
	Reference string `json:"reference" jsonschema:"a formatted Bible reference such as John 3:16, Romans 8:28-30 or Psalm 23"`
}

// ExtractInput is the input of "extract_references".
type ExtractInput struct {
	Text string `json:"text" jsonschema:"free text, typically a sermon transcript"`
}

// ExtractOutput is the output of "extract_references".
type ExtractOutput struct {
	References []string `json:"references"`
}

// SearchInput is the input of "search_verses".
type SearchInput struct {
	Query string `json:"query" jsonschema:"a phrase or paraphrase to match by meaning"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of verses, 1 to 50 (default 5)"`
}

// SearchOutput is the output of "search_verses".
type SearchOutput struct {
	Verses []fusion.Match `json:"verses"`
}

// Tools registers the Scripture tools on an MCP server.
type Tools struct {
	resolver *resolve.Resolver
	metrics  *observe.Metrics
}

// New creates the tool set backed by resolver. metrics may be nil.
func New(resolver *resolve.Resolver, metrics *observe.Metrics) *Tools {
	return &Tools{resolver: resolver, metrics: metrics}
}

// Server returns an MCP server with all tools registered.
func (t *Tools) Server(version string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "pulpit", Version: version}, nil)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "lookup_reference",
		Description: "Return the text of a Bible reference. Accepts abbreviations (1 Cor 13:4-7), whole chapters (Psalm 23) and verse ranges.",
	}, instrument(t, "lookup_reference", t.lookup))
	mcp.AddTool(s, &mcp.Tool{
		Name:        "extract_references",
		Description: "List the Bible references cited in a text, including spoken forms such as 'John chapter three verse sixteen'. References are normalized to 'Book C:V' form.",
	}, instrument(t, "extract_references", t.extract))
	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_verses",
		Description: "Find the verses closest in meaning to a phrase using the semantic verse index. Each result carries a cosine similarity score.",
	}, instrument(t, "search_verses", t.search))
	return s
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func (t *Tools) HTTPHandler(version string) http.Handler {
	s := t.Server(version)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

// RunStdio serves the tools on stdin/stdout until ctx is cancelled or the
// client disconnects.
func (t *Tools) RunStdio(ctx context.Context, version string) error {
	if err := t.Server(version).Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcptools: serve stdio: %w", err)
	}
	return nil
}

func (t *Tools) lookup(ctx context.Context, _ *mcp.CallToolRequest, in LookupInput) (*mcp.CallToolResult, resolve.Passage, error) {
	if in.Reference == "" {
		return nil, resolve.Passage{}, errors.New("reference must not be empty")
	}
	p, err := t.resolver.Lookup(ctx, in.Reference)
	if err != nil {
		return nil, resolve.Passage{}, err
	}
	return nil, p, nil
}

func (t *Tools) extract(_ context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, ExtractOutput, error) {
	return nil, ExtractOutput{References: t.resolver.Extract(in.Text)}, nil
}

func (t *Tools) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Query == "" {
		return nil, SearchOutput{}, errors.New("query must not be empty")
	}
	if in.Limit <= 0 {
		in.Limit = defaultSearchLimit
	}
	verses, err := t.resolver.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, SearchOutput{Verses: verses}, nil
}

// instrument records call counts and latency for a tool handler.
func instrument[In, Out any](t *Tools, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		ctx, span := observe.StartSpan(ctx, "mcp."+name)
		defer span.End()
		start := time.Now()
		res, out, err := h(ctx, req, in)
		if t.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			t.metrics.RecordToolCall(ctx, name, status)
			observe.Since(ctx, t.metrics.ToolExecutionDuration, start, observe.Attr("tool", name))
		}
		return res, out, err
	}
}
