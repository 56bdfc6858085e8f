// ABOUTME: MCP tool definitions and registration for the vault boundary
// ABOUTME: Every IPC operation the desktop client may invoke is declared here
package boundary

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/vault-standalone/internal/models"
	"github.com/harper/vault-standalone/internal/storage"
)

// Store is the persistence surface the boundary needs. The storage engine
// satisfies it; the legacy fallback satisfies it read-only.
type Store interface {
	SetFact(ctx context.Context, f *models.Fact) (string, error)
	GetFacts(ctx context.Context, filter storage.FactFilter) ([]models.Fact, error)
	CreateSession(ctx context.Context, s *models.Session) (string, error)
	AddMessage(ctx context.Context, m *models.Message) (string, error)
	SearchSessions(ctx context.Context, query string) ([]models.Session, error)
	GetRecentMessages(ctx context.Context, n int) ([]models.Message, error)
	ListPreferences(ctx context.Context) ([]models.Preference, error)
	Stats(ctx context.Context) (*storage.Stats, error)
	GetAllMeta(ctx context.Context) (map[string]string, error)
}

// Reinforcer applies usage boosts. Nil while degraded.
type Reinforcer interface {
	Reinforce(ctx context.Context, factIDs []string) ([]string, error)
}

// Config bounds the boundary's clamps and rate limits.
type Config struct {
	TokenBudgetCeiling int
	DefaultMaxPII      int
	RatePerOp          float64
	RateBurst          int
	// Degraded marks kill-switch or fallback operation: reads come from the
	// legacy store, writes are rejected, and health says so.
	Degraded bool
}

// Boundary holds the handlers behind every vault tool. Dependencies are
// injected; there is no global state.
type Boundary struct {
	store      Store
	reinforcer Reinforcer
	cfg        Config
	limiter    *opLimiter
	logger     *slog.Logger
}

func New(store Store, reinforcer Reinforcer, cfg Config) *Boundary {
	return &Boundary{
		store:      store,
		reinforcer: reinforcer,
		cfg:        cfg,
		limiter:    newOpLimiter(cfg.RatePerOp, cfg.RateBurst),
		logger:     slog.Default().With("component", "boundary"),
	}
}

// Register declares every tool on the MCP server.
func Register(server *mcpserver.MCPServer, b *Boundary) {
	server.AddTool(mcp.Tool{
		Name:        "set_fact",
		Description: "Store or update one fact about the user, keyed by category and predicate.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Fact category (e.g. 'location', 'food')",
				},
				"predicate": map[string]interface{}{
					"type":        "string",
					"description": "Fact predicate within the category (e.g. 'city')",
				},
				"value": map[string]interface{}{
					"type":        "string",
					"description": "Fact value; stored encrypted",
				},
				"confidence": map[string]interface{}{
					"type":        "number",
					"description": "Confidence in the fact, 0 to 1 (default: 1)",
					"default":     1,
				},
				"pii_level": map[string]interface{}{
					"type":        "number",
					"description": "Sensitivity tier: 0 public, 1 personal, 2 sensitive (default: 1)",
					"default":     1,
				},
				"consent_scope": map[string]interface{}{
					"type":        "string",
					"description": "'default' or 'never_upload' (default: 'default')",
				},
			},
			Required: []string{"category", "predicate", "value"},
		},
	}, b.SetFact)

	server.AddTool(mcp.Tool{
		Name:        "build_context",
		Description: "Select and pack vault slices relevant to a goal into a token-budgeted context bundle.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"goal": map[string]interface{}{
					"type":        "string",
					"description": "What the assistant is about to do",
				},
				"token_budget": map[string]interface{}{
					"type":        "number",
					"description": "Token budget for the bundle; clamped to the configured ceiling",
				},
				"max_pii": map[string]interface{}{
					"type":        "number",
					"description": "Highest pii_level to include; raising it above the default requires elevated_trust",
				},
				"elevated_trust": map[string]interface{}{
					"type":        "boolean",
					"description": "Explicitly allow sensitive slices above the default PII ceiling",
				},
			},
			Required: []string{"goal"},
		},
	}, b.BuildContext)

	server.AddTool(mcp.Tool{
		Name:        "reinforce",
		Description: "Record that facts were used in a context bundle so future selection favors them.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"fact_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Fact ids from the bundle that was used",
				},
			},
			Required: []string{"fact_ids"},
		},
	}, b.Reinforce)

	server.AddTool(mcp.Tool{
		Name:        "add_message",
		Description: "Append one conversation turn to a session. Omitting session_id starts a new session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Existing session to append to; omit to start a new one",
				},
				"role": map[string]interface{}{
					"type":        "string",
					"description": "'user' or 'assistant'",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Turn content; stored encrypted",
				},
				"session_title": map[string]interface{}{
					"type":        "string",
					"description": "Title for a newly started session",
				},
				"session_goal": map[string]interface{}{
					"type":        "string",
					"description": "Goal for a newly started session",
				},
			},
			Required: []string{"role", "content"},
		},
	}, b.AddMessage)

	server.AddTool(mcp.Tool{
		Name:        "search_sessions",
		Description: "Full-text search over session titles and goals. Message content is never indexed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms",
				},
			},
			Required: []string{"query"},
		},
	}, b.SearchSessions)

	server.AddTool(mcp.Tool{
		Name:        "health",
		Description: "Vault health: row counts, integrity, migration state, versions, degraded flag.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, b.Health)
}
