package user

import (
	"time"
)

// MaxLoginAttempts is the number of consecutive failed logins before an
// account is locked.
const MaxLoginAttempts = 5

// LockDuration is how long an account stays locked after too many failures.
const LockDuration = time.Hour

// User represents a registered account.
type User struct {
	ID            string     `gorm:"primaryKey;type:text"`
	Username      string     `gorm:"uniqueIndex;not null;type:text"`
	Email         string     `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash  string     `gorm:"not null;type:text" json:"-"`
	PublicKey     string     `gorm:"not null;type:text"`
	Active        bool       `gorm:"not null;default:true"`
	LoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockUntil     *time.Time `json:"-"`
	LastLogin     time.Time
	LastActive    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// IsLocked reports whether the account is currently locked out.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// Claims is the identity carried by a verified token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Profile is the public view of a user, safe to return to other accounts.
type Profile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	PublicKey  string    `json:"public_key"`
	Active     bool      `json:"active"`
	LastActive time.Time `json:"last_active"`
}

// PublicProfile converts a user to its public view.
func (u *User) PublicProfile() Profile {
	return Profile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		PublicKey:  u.PublicKey,
		Active:     u.Active,
		LastActive: u.LastActive,
	}
}
