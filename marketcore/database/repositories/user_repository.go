package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, user *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) DB() *bun.DB {
	return r.db
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Joined.IsZero() {
		user.Joined = time.Now()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

type DeviceRepository interface {
	Register(ctx context.Context, device *models.Device) error
	GetTokens(ctx context.Context, userID string) ([]string, error)
}

type deviceRepository struct {
	db *bun.DB
}

func NewDeviceRepository(db *bun.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Register(ctx context.Context, device *models.Device) error {
	device.CreatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(device).
		On("CONFLICT (token) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (r *deviceRepository) GetTokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.db.NewSelect().
		Model((*models.Device)(nil)).
		Column("token").
		Where("user_id = ?", userID).
		Scan(ctx, &tokens)

	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	return tokens, nil
}
