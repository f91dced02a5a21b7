package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/validation"
)

// ConnectRequest describes a proposed link between two entities, optionally
// scoped to a node pair inside them.
type ConnectRequest struct {
	SourceFeature  string
	TargetFeature  string
	SourceEntityID string
	TargetEntityID string
	SourceNodeID   string
	TargetNodeID   string
	Type           models.LinkType
	Strength       float64
	Context        map[string]any
}

// Links manages the relationship graph between entities. Proposed links are
// validated before they are stored, and dependency links additionally go
// through cycle detection against the existing graph.
type Links struct {
	persistence persistence.Persistence
	validator   *validation.ConnectionValidator
	logger      *slog.Logger
}

// NewLinks creates a link management service.
func NewLinks(persistence persistence.Persistence, logger *slog.Logger) *Links {
	return &Links{
		persistence: persistence,
		validator:   validation.NewConnectionValidator(),
		logger:      logger.With("module", "links"),
	}
}

// Connect validates and stores a new link.
func (s *Links) Connect(ctx context.Context, req ConnectRequest) (*models.NodeLink, error) {
	link, err := models.NewNodeLink(
		req.SourceFeature, req.TargetFeature,
		req.SourceEntityID, req.TargetEntityID,
		req.Type, req.Strength)
	if err != nil {
		return nil, err
	}

	if req.SourceNodeID != "" || req.TargetNodeID != "" {
		err = link.ScopeToNodes(req.SourceNodeID, req.TargetNodeID)
		if err != nil {
			return nil, err
		}
	}

	if req.Context != nil {
		link.Context = req.Context
	}

	if req.Type == models.LinkTypeDependency {
		err = s.checkForCycle(ctx, req.SourceEntityID, req.TargetEntityID)
		if err != nil {
			return nil, err
		}
	}

	err = s.persistence.LinkRepository().Save(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	s.logger.DebugContext(ctx, "Link created",
		"link_id", link.ID,
		"source", req.SourceEntityID,
		"target", req.TargetEntityID,
		"type", req.Type)

	return link, nil
}

// Reweigh replaces the strength of an existing link.
func (s *Links) Reweigh(ctx context.Context, linkID string, strength float64) (*models.NodeLink, error) {
	link, err := s.persistence.LinkRepository().GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if link == nil {
		return nil, ErrLinkNotFound
	}

	err = link.UpdateStrength(strength)
	if err != nil {
		return nil, err
	}

	err = s.persistence.LinkRepository().Save(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	return link, nil
}

// Remove deletes a link by its ID.
func (s *Links) Remove(ctx context.Context, linkID string) error {
	link, err := s.persistence.LinkRepository().GetByID(ctx, linkID)
	if err != nil {
		return err
	}

	if link == nil {
		return ErrLinkNotFound
	}

	err = s.persistence.LinkRepository().Delete(ctx, linkID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	return nil
}

// ListForEntity returns links where the entity is source or target.
func (s *Links) ListForEntity(ctx context.Context, entityID string) ([]*models.NodeLink, error) {
	return s.persistence.LinkRepository().ListByEntity(ctx, entityID)
}

// checkForCycle rejects a dependency edge that would close a cycle over the
// stored graph.
func (s *Links) checkForCycle(ctx context.Context, sourceEntityID, targetEntityID string) error {
	existing, err := s.persistence.LinkRepository().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load existing links: %w", err)
	}

	result := s.validator.ValidateCircularDependency(sourceEntityID, targetEntityID, existing)
	if result.HasErrors() {
		return fmt.Errorf("connection rejected: %s", strings.Join(result.Errors, "; "))
	}

	return nil
}
