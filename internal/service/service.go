package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
)

// AuditLogger records mutations to the audit trail
type AuditLogger interface {
	Log(ctx context.Context, entry audit.AuditLog) error
}

type nopAuditLogger struct{}

func (nopAuditLogger) Log(context.Context, audit.AuditLog) error { return nil }

// orNop substitutes a no-op logger when auditing is not configured
func orNop(a AuditLogger) AuditLogger {
	if a == nil {
		return nopAuditLogger{}
	}
	return a
}

// recordAudit writes an audit entry. Failures are logged, never returned.
func recordAudit(ctx context.Context, a AuditLogger, logger *zap.Logger, entry audit.AuditLog) {
	if err := a.Log(ctx, entry); err != nil {
		logger.Warn("failed to write audit log",
			zap.Error(err),
			zap.String("resource_type", string(entry.ResourceType)),
			zap.String("resource_id", entry.ResourceID),
		)
	}
}

// loadLocation resolves an IANA zone, falling back to fallback and then UTC
func loadLocation(name, fallback string) *time.Location {
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	return time.UTC
}
