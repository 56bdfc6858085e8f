// ABOUTME: Tagged result envelope and the error-code mapping for the boundary
// ABOUTME: Callers see {"ok":true,"data"} or {"ok":false,"error"}, never raw errors
package boundary

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/storage"
)

// Machine-readable error codes. These are the only failure detail that
// crosses the boundary; messages, paths, and wrapped causes stay inside.
const (
	codeValidation  = "validation_failed"
	codeRateLimited = "rate_limited"
	codeNotFound    = "not_found"
	codeUnavailable = "storage_unavailable"
	codeDecryption  = "decryption_failed"
	codeReadOnly    = "vault_disabled"
	codeInternal    = "internal_error"
)

// errReadOnly marks writes attempted while serving from the legacy fallback.
var errReadOnly = errors.New("vault disabled, store is read-only")

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func okResult(data any) *mcp.CallToolResult {
	payload, err := json.Marshal(envelope{OK: true, Data: data})
	if err != nil {
		return errResult(codeInternal)
	}
	return mcp.NewToolResultText(string(payload))
}

func errResult(code string) *mcp.CallToolResult {
	payload, _ := json.Marshal(envelope{OK: false, Error: code})
	return mcp.NewToolResultError(string(payload))
}

// errCode maps an internal error to its boundary code.
func errCode(err error) string {
	switch {
	case errors.Is(err, errReadOnly):
		return codeReadOnly
	case errors.Is(err, storage.ErrNotFound):
		return codeNotFound
	case errors.Is(err, crypto.ErrDecryption):
		return codeDecryption
	case errors.Is(err, storage.ErrUnavailable):
		return codeUnavailable
	default:
		return codeInternal
	}
}
