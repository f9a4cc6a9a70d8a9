package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationAction OperationType = "ACTION"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceMedication             ResourceType = "medication"
	ResourceDose                   ResourceType = "dose"
	ResourceInventory              ResourceType = "inventory"
	ResourceNotificationPreference ResourceType = "notification_preference"
	ResourceReport                 ResourceType = "report"
	ResourceUser                   ResourceType = "user"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID             string
	UserID         string
	OperationType  OperationType
	ResourceType   ResourceType
	ResourceID     string
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
	AdditionalData map[string]interface{}
}

type requestInfoKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequestInfo attaches the caller's address and user agent to ctx so
// entries logged further down the call chain carry them
func WithRequestInfo(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ipAddress, userAgent: userAgent})
}

// RequestInfo returns the address and user agent attached by WithRequestInfo
func RequestInfo(ctx context.Context) (ipAddress, userAgent string) {
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info.ip, info.userAgent
}

// Logger handles audit logging
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Log creates an audit log entry
func (l *Logger) Log(ctx context.Context, entry AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	ip, agent := RequestInfo(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = ip
	}
	if entry.UserAgent == "" {
		entry.UserAgent = agent
	}

	l.logger.Info("Audit log entry",
		zap.String("user_id", entry.UserID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("ip_address", entry.IPAddress),
	)

	query := `
		INSERT INTO audit_logs (
			user_id, operation_type, resource_type, resource_id,
			timestamp, ip_address, user_agent, additional_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.db.Exec(ctx, query,
		entry.UserID,
		string(entry.OperationType),
		string(entry.ResourceType),
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
		entry.AdditionalData,
	)
	if err != nil {
		l.logger.Error("Failed to write audit log to database",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("operation", string(entry.OperationType)),
			zap.String("resource_type", string(entry.ResourceType)),
		)
		return err
	}

	return nil
}

// GetAuditLogs retrieves audit logs for a user, newest first
func (l *Logger) GetAuditLogs(ctx context.Context, userID string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, user_id, operation_type, resource_type, resource_id,
		       timestamp, COALESCE(ip_address, ''), COALESCE(user_agent, ''), additional_data
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var op, resource string
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&op,
			&resource,
			&log.ResourceID,
			&log.Timestamp,
			&log.IPAddress,
			&log.UserAgent,
			&log.AdditionalData,
		)
		if err != nil {
			l.logger.Error("Failed to scan audit log", zap.Error(err))
			continue
		}
		log.OperationType = OperationType(op)
		log.ResourceType = ResourceType(resource)
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
