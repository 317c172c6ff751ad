package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/bookswap-backend/internal/models"
)

type auditLogsRepo struct{ db *sql.DB }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var details sql.NullString
	if l.Details != nil {
		b, err := json.Marshal(l.Details)
		if err != nil {
			return err
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs(id, entity_type, entity_id, actor_id, action, details, created_at) VALUES(?,?,?,?,?,?,?)`,
		l.ID, l.EntityType, l.EntityID, l.ActorID, l.Action, details, micros(l.CreatedAt),
	)
	return mapErr(err, "audit log")
}

func (r *auditLogsRepo) ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, actor_id, action, details, created_at
		   FROM audit_logs
		  WHERE entity_type = ? AND entity_id = ?
		  ORDER BY created_at, id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, mapErr(err, "audit logs")
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var details sql.NullString
		var created int64
		if err := rows.Scan(&l.ID, &l.EntityType, &l.EntityID, &l.ActorID, &l.Action, &details, &created); err != nil {
			return nil, err
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &l.Details); err != nil {
				return nil, err
			}
		}
		l.CreatedAt = fromMicros(created)
		out = append(out, l)
	}
	return out, rows.Err()
}
