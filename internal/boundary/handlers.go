// ABOUTME: Handler implementations for the vault boundary tools
// ABOUTME: Order per call: rate limit, validate, sanitize, clamp, then storage
package boundary

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/vault-standalone/internal/models"
	"github.com/harper/vault-standalone/internal/selector"
	"github.com/harper/vault-standalone/internal/storage"
)

// recentMessageWindow is how many recent turns become selection candidates.
const recentMessageWindow = 50

// SetFact handles the set_fact tool.
func (b *Boundary) SetFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("set_fact") {
		return errResult(codeRateLimited), nil
	}

	category, err := request.RequireString("category")
	if err != nil || !validName(category) {
		return errResult(codeValidation), nil
	}
	predicate, err := request.RequireString("predicate")
	if err != nil || !validName(predicate) {
		return errResult(codeValidation), nil
	}
	rawValue, err := request.RequireString("value")
	if err != nil {
		return errResult(codeValidation), nil
	}
	value := sanitizeText(rawValue, maxTextLen)
	if value == "" {
		return errResult(codeValidation), nil
	}

	confidence := request.GetFloat("confidence", 1)
	if confidence < 0 || confidence > 1 {
		return errResult(codeValidation), nil
	}
	pii := request.GetInt("pii_level", models.PIIPersonal)
	if !models.ValidPIILevel(pii) {
		return errResult(codeValidation), nil
	}
	consent := models.ConsentScope(request.GetString("consent_scope", string(models.ConsentDefault)))
	if !models.ValidConsent(consent) {
		return errResult(codeValidation), nil
	}

	id, err := b.store.SetFact(ctx, &models.Fact{
		Category:   category,
		Predicate:  predicate,
		Object:     value,
		Confidence: confidence,
		PIILevel:   pii,
		Consent:    consent,
	})
	if err != nil {
		b.logger.Error("set_fact failed", "error", err)
		return errResult(errCode(err)), nil
	}
	return okResult(map[string]interface{}{"id": id}), nil
}

// BuildContext handles the build_context tool.
func (b *Boundary) BuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("build_context") {
		return errResult(codeRateLimited), nil
	}

	rawGoal, err := request.RequireString("goal")
	if err != nil {
		return errResult(codeValidation), nil
	}
	goal := sanitizeText(rawGoal, maxGoalLen)
	if goal == "" {
		return errResult(codeValidation), nil
	}

	budget := request.GetInt("token_budget", b.cfg.TokenBudgetCeiling)
	if budget < 1 {
		return errResult(codeValidation), nil
	}
	if budget > b.cfg.TokenBudgetCeiling {
		budget = b.cfg.TokenBudgetCeiling
	}

	// The PII ceiling only rises past the default when the caller says so
	// explicitly. A plain call can never read sensitive slices by accident.
	maxPII := request.GetInt("max_pii", b.cfg.DefaultMaxPII)
	if !models.ValidPIILevel(maxPII) {
		return errResult(codeValidation), nil
	}
	if maxPII > b.cfg.DefaultMaxPII && !request.GetBool("elevated_trust", false) {
		maxPII = b.cfg.DefaultMaxPII
	}

	candidates, err := b.candidateSlices(ctx)
	if err != nil {
		b.logger.Error("build_context failed", "error", err)
		return errResult(errCode(err)), nil
	}
	bundle := selector.Build(goal, candidates, selector.Policy{
		MaxPII:      maxPII,
		TokenBudget: budget,
	})
	return okResult(bundle), nil
}

// candidateSlices renders every selectable entity as a slice. Filtering stays
// inside the selector so there is exactly one place that enforces it.
func (b *Boundary) candidateSlices(ctx context.Context) ([]models.Slice, error) {
	facts, err := b.store.GetFacts(ctx, storage.NoFilter)
	if err != nil {
		return nil, err
	}
	messages, err := b.store.GetRecentMessages(ctx, recentMessageWindow)
	if err != nil {
		return nil, err
	}
	prefs, err := b.store.ListPreferences(ctx)
	if err != nil {
		return nil, err
	}

	slices := make([]models.Slice, 0, len(facts)+len(messages)+len(prefs))
	for _, f := range facts {
		slices = append(slices, selector.FromFact(f))
	}
	for _, m := range messages {
		slices = append(slices, selector.FromMessage(m))
	}
	for _, p := range prefs {
		slices = append(slices, selector.FromPreference(p))
	}
	return slices, nil
}

// Reinforce handles the reinforce tool.
func (b *Boundary) Reinforce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("reinforce") {
		return errResult(codeRateLimited), nil
	}
	if b.reinforcer == nil {
		return errResult(codeReadOnly), nil
	}

	ids := request.GetStringSlice("fact_ids", nil)
	if len(ids) == 0 {
		return errResult(codeValidation), nil
	}
	for _, id := range ids {
		if id == "" || len(id) > maxKeyLen {
			return errResult(codeValidation), nil
		}
	}

	applied, err := b.reinforcer.Reinforce(ctx, ids)
	if err != nil {
		b.logger.Error("reinforce failed", "error", err)
		return errResult(errCode(err)), nil
	}
	return okResult(map[string]interface{}{
		"applied": applied,
		"count":   len(applied),
	}), nil
}

// AddMessage handles the add_message tool.
func (b *Boundary) AddMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("add_message") {
		return errResult(codeRateLimited), nil
	}

	role, err := request.RequireString("role")
	if err != nil || !models.ValidRole(role) {
		return errResult(codeValidation), nil
	}
	rawContent, err := request.RequireString("content")
	if err != nil {
		return errResult(codeValidation), nil
	}
	content := sanitizeText(rawContent, maxTextLen)
	if content == "" {
		return errResult(codeValidation), nil
	}

	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		title := sanitizeText(request.GetString("session_title", ""), maxNameLen)
		if title == "" {
			title = "Conversation"
		}
		goal := sanitizeText(request.GetString("session_goal", ""), maxGoalLen)
		sessionID, err = b.store.CreateSession(ctx, &models.Session{Title: title, Goal: goal})
		if err != nil {
			b.logger.Error("add_message failed to start session", "error", err)
			return errResult(errCode(err)), nil
		}
	} else if len(sessionID) > maxKeyLen {
		return errResult(codeValidation), nil
	}

	id, err := b.store.AddMessage(ctx, &models.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		b.logger.Error("add_message failed", "error", err)
		return errResult(errCode(err)), nil
	}
	return okResult(map[string]interface{}{
		"message_id": id,
		"session_id": sessionID,
	}), nil
}

// SearchSessions handles the search_sessions tool.
func (b *Boundary) SearchSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("search_sessions") {
		return errResult(codeRateLimited), nil
	}

	rawQuery, err := request.RequireString("query")
	if err != nil {
		return errResult(codeValidation), nil
	}
	query := sanitizeText(rawQuery, maxQueryLen)
	if query == "" {
		return errResult(codeValidation), nil
	}

	sessions, err := b.store.SearchSessions(ctx, query)
	if err != nil {
		b.logger.Error("search_sessions failed", "error", err)
		return errResult(errCode(err)), nil
	}
	return okResult(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}), nil
}

// Health handles the health tool.
func (b *Boundary) Health(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !b.limiter.Allow("health") {
		return errResult(codeRateLimited), nil
	}

	stats, err := b.store.Stats(ctx)
	if err != nil {
		b.logger.Error("health failed", "error", err)
		return errResult(errCode(err)), nil
	}
	meta, err := b.store.GetAllMeta(ctx)
	if err != nil {
		b.logger.Error("health failed", "error", err)
		return errResult(errCode(err)), nil
	}
	return okResult(map[string]interface{}{
		"degraded":         b.cfg.Degraded,
		"stats":            stats,
		"meta":             meta,
		"selector_version": selector.Version,
	}), nil
}
