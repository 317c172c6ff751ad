package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	repo "github.com/baharkarakas/bookswap-backend/internal/repository"
	"github.com/baharkarakas/bookswap-backend/internal/worker"
)

const auditTimeout = 5 * time.Second

// auditor records audit entries off the request path. Losing an entry never fails the
// operation that produced it.
type auditor struct {
	logs repo.AuditLogs
	wp   *worker.Pool
	log  *slog.Logger
}

func (a auditor) record(entityType, entityID, actorID, action string, details map[string]any) {
	if a.logs == nil {
		return
	}
	entry := models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		Details:    details,
	}
	job := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, auditTimeout)
		defer cancel()
		return a.logs.Create(ctx, entry)
	}
	if a.wp == nil || !a.wp.Submit("audit."+action, job) {
		if err := job(context.Background()); err != nil && a.log != nil {
			a.log.Error("audit write failed", "action", action, "entity_id", entityID, "err", err)
		}
	}
}

func normalize(page pagination.Request) pagination.Request {
	page.Limit = pagination.ClampPageSize(page.Limit, pagination.DefaultPageSize)
	return page
}
