package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ksred/tienda-moves/internal/database"
	"github.com/ksred/tienda-moves/internal/revision"
)

// Handler runs revision tool calls against a manager
type Handler struct {
	manager *database.Manager
	logger  zerolog.Logger
}

// NewHandler creates a new MCP handler
func NewHandler(manager *database.Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// RevisionRequest names a revision and whether to fake running it
type RevisionRequest struct {
	Target string `json:"target,omitempty"`
	Fake   bool   `json:"fake,omitempty"`
}

// CreateRevisionRequest is the request for a new blank revision
type CreateRevisionRequest struct {
	Name string `json:"name,omitempty"`
}

// RevisionDetail is a parsed revision plus its ledger state
type RevisionDetail struct {
	Revision *revision.Revision `json:"revision"`
	Applied  bool               `json:"applied"`
}

// HandleStatus lists every revision with its ledger state
func (h *Handler) HandleStatus(ctx context.Context, params json.RawMessage) (*Response, error) {
	h.logger.Debug().Msg("HandleStatus called")
	return h.status(ctx, "Revision status")
}

func (h *Handler) status(ctx context.Context, message string) (*Response, error) {
	status, err := h.manager.Status(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read revision status")
		return NewErrorResponse(fmt.Sprintf("failed to read status: %v", err)), nil
	}

	pending := 0
	for _, r := range status.Revisions {
		if !r.Applied {
			pending++
		}
	}

	resp := NewSuccessResponse(message, status)
	resp.Meta = &ResponseMeta{
		Count:   len(status.Revisions),
		Pending: pending,
		Orphans: len(status.Orphans),
	}
	return resp, nil
}

// HandleShowRevision returns the operations of one revision
func (h *Handler) HandleShowRevision(ctx context.Context, params json.RawMessage) (*Response, error) {
	h.logger.Debug().RawJSON("params", params).Msg("HandleShowRevision called")

	var req RevisionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("invalid request format: %v", err)), nil
	}
	if req.Target == "" {
		return NewErrorResponse("target is required"), nil
	}

	rev, err := h.manager.Read(req.Target)
	if err != nil {
		h.logger.Warn().Err(err).Str("target", req.Target).Msg("failed to read revision")
		return NewErrorResponse(err.Error()), nil
	}
	applied, err := h.manager.Ledger().IsApplied(ctx, rev.ID)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("failed to read ledger: %v", err)), nil
	}

	return NewSuccessResponse("Revision "+rev.ID, RevisionDetail{Revision: rev, Applied: applied}), nil
}

// HandleUpgrade applies pending revisions up to an optional target
func (h *Handler) HandleUpgrade(ctx context.Context, params json.RawMessage) (*Response, error) {
	h.logger.Debug().RawJSON("params", params).Msg("HandleUpgrade called")

	var req RevisionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("invalid request format: %v", err)), nil
	}

	if err := h.manager.Upgrade(ctx, req.Target, req.Fake); err != nil {
		h.logger.Error().Err(err).Str("target", req.Target).Msg("upgrade failed")
		return NewErrorResponse(fmt.Sprintf("upgrade failed: %v", err)), nil
	}
	return h.status(ctx, "Upgrade complete")
}

// HandleDowngrade reverts the latest revision, or down to a target
func (h *Handler) HandleDowngrade(ctx context.Context, params json.RawMessage) (*Response, error) {
	h.logger.Debug().RawJSON("params", params).Msg("HandleDowngrade called")

	var req RevisionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("invalid request format: %v", err)), nil
	}

	if err := h.manager.Downgrade(ctx, req.Target, req.Fake); err != nil {
		h.logger.Error().Err(err).Str("target", req.Target).Msg("downgrade failed")
		return NewErrorResponse(fmt.Sprintf("downgrade failed: %v", err)), nil
	}
	return h.status(ctx, "Downgrade complete")
}

// HandleCreateRevision writes a blank revision
func (h *Handler) HandleCreateRevision(ctx context.Context, params json.RawMessage) (*Response, error) {
	h.logger.Debug().RawJSON("params", params).Msg("HandleCreateRevision called")

	var req CreateRevisionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("invalid request format: %v", err)), nil
	}

	id, err := h.manager.Revision(req.Name)
	if err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("failed to create revision")
		return NewErrorResponse(fmt.Sprintf("failed to create revision: %v", err)), nil
	}
	return NewSuccessResponse("Revision created", map[string]string{"id": id}), nil
}
