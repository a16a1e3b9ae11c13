package credential

import (
	"context"
	"errors"
	"fmt"

	"consultancy_auth/internal/domain"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL error number for a duplicate unique key
const mysqlDuplicateEntry = 1062

var (
	// ErrNotFound is returned by repositories when no user matches
	ErrNotFound = errors.New("user not found")
	// ErrPageOutOfRange is returned for a negative offset or a page past the addressable range
	ErrPageOutOfRange = errors.New("page out of range")
)

// Repository persists users
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	List(ctx context.Context, offset, limit int) ([]domain.User, int64, error)
}

// GormRepository is the MySQL-backed Repository
type GormRepository struct {
	db   *gorm.DB
	cost int // bcrypt cost handed to the password hook
}

// NewGormRepository wraps db; cost is the bcrypt cost used when saving users
func NewGormRepository(db *gorm.DB, cost int) *GormRepository {
	return &GormRepository{db: db, cost: cost}
}

// FindByEmail looks a user up by normalized email
func (r *GormRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByID looks a user up by primary key
func (r *GormRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Create inserts the user; the BeforeSave hook hashes the password
func (r *GormRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Set(domain.BcryptCostSetting, r.cost).Create(user).Error
	if err != nil {
		return translate(err)
	}
	return nil
}

// List returns one page of users ordered by creation time plus the total count
func (r *GormRepository) List(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	if offset < 0 {
		return nil, 0, ErrPageOutOfRange
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrUserExists
	}
	return fmt.Errorf("db error: %w", err)
}
