package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freight-erp/internal/permission"
	"freight-erp/internal/repository"
)

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	UserRole   string          `json:"user_role"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  string          `json:"created_at"`
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	Action     string
	Page       int
	Limit      int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor *permission.Profile, filter AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs lists activity newest first with the acting users pre-loaded
func (s *auditService) GetAuditLogs(ctx context.Context, actor *permission.Profile, filter AuditFilter) ([]AuditLogResponse, int64, error) {
	if err := requireFeature(actor, permission.FeatureAuditView); err != nil {
		return nil, 0, err
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	logs, total, err := s.repo.List(ctx, repository.AuditListFilter{
		EntityType: filter.EntityType,
		EntityID:   filter.EntityID,
		Action:     filter.Action,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		details := json.RawMessage(l.Details)
		if !json.Valid(details) {
			details = json.RawMessage("null")
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			UserRole:   l.UserRole,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}

	return res, total, nil
}
