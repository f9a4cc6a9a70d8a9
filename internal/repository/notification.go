package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// TargetCipher encrypts delivery targets at rest
type TargetCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NotificationRepository stores per-user channel preferences. Targets are
// encrypted before they reach the database.
type NotificationRepository struct {
	db     *pgxpool.Pool
	cipher TargetCipher
	logger *zap.Logger
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *pgxpool.Pool, cipher TargetCipher, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		cipher: cipher,
		logger: logger,
	}
}

// Upsert creates or replaces the preference for the user's channel
func (r *NotificationRepository) Upsert(ctx context.Context, pref *model.NotificationPreference) error {
	encrypted, err := r.cipher.Encrypt(pref.Target)
	if err != nil {
		return fmt.Errorf("failed to encrypt notification target: %w", err)
	}

	query := `
		INSERT INTO notification_preferences (
			id, user_id, channel, target_encrypted, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, channel) DO UPDATE SET
			target_encrypted = EXCLUDED.target_encrypted,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err = r.db.QueryRow(ctx, query,
		pref.ID,
		pref.UserID,
		string(pref.Channel),
		encrypted,
		pref.Enabled,
		pref.CreatedAt,
		pref.UpdatedAt,
	).Scan(&pref.ID, &pref.CreatedAt)
	if err != nil {
		r.logger.Error("failed to upsert notification preference",
			zap.Error(err),
			zap.String("user_id", pref.UserID),
			zap.String("channel", string(pref.Channel)),
		)
		return fmt.Errorf("failed to upsert notification preference: %w", err)
	}
	return nil
}

// FindByUserID retrieves the preferences of a user with decrypted targets
func (r *NotificationRepository) FindByUserID(ctx context.Context, userID string) ([]model.NotificationPreference, error) {
	query := `
		SELECT id, user_id, channel, target_encrypted, enabled, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY channel
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to find notification preferences", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find notification preferences: %w", err)
	}
	defer rows.Close()

	prefs := []model.NotificationPreference{}
	for rows.Next() {
		var pref model.NotificationPreference
		var channel, encrypted string
		if err := rows.Scan(
			&pref.ID,
			&pref.UserID,
			&channel,
			&encrypted,
			&pref.Enabled,
			&pref.CreatedAt,
			&pref.UpdatedAt,
		); err != nil {
			r.logger.Error("failed to scan notification preference", zap.Error(err))
			continue
		}
		target, err := r.cipher.Decrypt(encrypted)
		if err != nil {
			r.logger.Error("failed to decrypt notification target",
				zap.Error(err),
				zap.String("preference_id", pref.ID),
			)
			continue
		}
		pref.Channel = model.Channel(channel)
		pref.Target = target
		prefs = append(prefs, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification preferences: %w", err)
	}
	return prefs, nil
}
