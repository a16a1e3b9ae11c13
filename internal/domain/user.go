package domain

import (
	"strings" // Email normalization
	"time"    // Creation timestamp

	"github.com/google/uuid"     // User identifiers
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM hooks
)

// BcryptCostSetting is the gorm statement setting read by the password hook
const BcryptCostSetting = "consultancy:bcrypt_cost"

// Known roles. Registration accepts only these.
const (
	RoleAdmin      = "admin"
	RoleConsultant = "consultant"
	RoleClient     = "client"
	RoleStudent    = "student"
)

// User Model
type User struct {
	ID        string    `gorm:"primaryKey;size:36"`            // UUID primary key
	Name      string    `gorm:"not null"`                      // Full name
	Email     string    `gorm:"uniqueIndex;size:191;not null"` // Unique, lower-cased email
	Password  string    `gorm:"not null"`                      // Hashed password
	Role      string    `gorm:"size:32;default:student"`       // admin, consultant, client or student
	Phone     string    `gorm:"size:32"`                       // Optional phone number
	CreatedAt time.Time // Set by GORM on insert
}

// PublicUser is the password-free projection returned to clients
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Public projects the user for API responses
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BeforeCreate assigns an ID to new users
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString() // Generate a fresh UUID
	}
	if u.Role == "" {
		u.Role = RoleStudent // Default role
	}
	return nil
}

// BeforeSave hashes the password unless it already holds a bcrypt hash
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Password == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(u.Password)); err == nil {
		return nil // Already hashed
	}
	cost := bcrypt.DefaultCost
	if v, ok := tx.Get(BcryptCostSetting); ok {
		if c, ok := v.(int); ok {
			cost = c
		}
	}
	hash, err := HashPassword(u.Password, cost)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

// HashPassword returns a bcrypt hash of plain at the given cost
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored hash
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}
