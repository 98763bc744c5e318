package repository

import (
	"errors"
	"fmt"
	"time"

	"codentor-backend/internal/calendar/domain"
	"codentor-backend/pkg/crypto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository stores one Google grant per user.
type TokenRepository interface {
	// Upsert inserts or replaces the grant. An empty refresh token keeps the
	// stored one, since Google only returns it on first consent.
	Upsert(token *domain.GoogleToken) error
	// FindByUserID returns nil, nil when the user never connected.
	FindByUserID(userID string) (*domain.GoogleToken, error)
	Exists(userID string) (bool, error)
	// UpdateAccessToken writes only the access token columns.
	UpdateAccessToken(userID, accessToken string, expiry time.Time, scope string) error
	Delete(userID string) error
}

type gormTokenRepository struct {
	db     *gorm.DB
	sealer *crypto.Sealer
}

// NewGormTokenRepository seals token values with sealer; a nil sealer stores
// them as is.
func NewGormTokenRepository(db *gorm.DB, sealer *crypto.Sealer) TokenRepository {
	return &gormTokenRepository{db: db, sealer: sealer}
}

func (r *gormTokenRepository) Upsert(token *domain.GoogleToken) error {
	access, err := r.sealer.Seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.sealer.Seal(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	now := time.Now().UTC()
	row := *token
	row.AccessToken = access
	row.RefreshToken = refresh
	row.Expiry = token.Expiry.UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	columns := []string{"access_token", "token_type", "scope", "expiry", "updated_at"}
	if token.RefreshToken != "" {
		columns = append(columns, "refresh_token")
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
}

func (r *gormTokenRepository) FindByUserID(userID string) (*domain.GoogleToken, error) {
	var token domain.GoogleToken
	if err := r.db.Where("user_id = ?", userID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if token.AccessToken, err = r.sealer.Open(token.AccessToken); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if token.RefreshToken, err = r.sealer.Open(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	return &token, nil
}

func (r *gormTokenRepository) Exists(userID string) (bool, error) {
	var count int64
	if err := r.db.Model(&domain.GoogleToken{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormTokenRepository) UpdateAccessToken(userID, accessToken string, expiry time.Time, scope string) error {
	sealed, err := r.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	updates := map[string]interface{}{
		"access_token": sealed,
		"expiry":       expiry.UTC(),
		"updated_at":   time.Now().UTC(),
	}
	if scope != "" {
		updates["scope"] = scope
	}
	return r.db.Model(&domain.GoogleToken{}).Where("user_id = ?", userID).Updates(updates).Error
}

func (r *gormTokenRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.GoogleToken{}).Error
}
