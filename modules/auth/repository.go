package auth

import (
	"errors"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the email or username is taken.
	ErrUserExists = errors.New("user already exists")
)

// UserRepository handles user persistence using GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(user *domain.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(id string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail finds a user by email.
func (r *UserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindByIDs returns the active users among the given ids.
func (r *UserRepository) FindByIDs(ids []string) ([]domain.User, error) {
	var users []domain.User
	result := r.db.Where("id IN ? AND active = ?", ids, true).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// Search returns active users whose username contains the query,
// excluding the requesting user.
func (r *UserRepository) Search(query, excludeUserID string, limit int) ([]domain.User, error) {
	var users []domain.User
	result := r.db.
		Where("username LIKE ? AND active = ? AND id <> ?", "%"+query+"%", true, excludeUserID).
		Order("username").
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// IdentityExists checks whether the email or username is already taken.
func (r *UserRepository) IdentityExists(email, username string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// UsernameExists checks whether the username is already taken.
func (r *UserRepository) UsernameExists(username string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.User{}).
		Where("username = ?", username).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// RecordFailedLogin bumps the failure counter and locks the account once
// the limit is reached.
func (r *UserRepository) RecordFailedLogin(user *domain.User) error {
	user.LoginAttempts++
	if user.LoginAttempts >= domain.MaxLoginAttempts {
		until := time.Now().Add(domain.LockDuration)
		user.LockUntil = &until
	}
	return r.db.Model(user).
		Select("login_attempts", "lock_until").
		Updates(map[string]any{
			"login_attempts": user.LoginAttempts,
			"lock_until":     user.LockUntil,
		}).Error
}

// RecordSuccessfulLogin resets the failure counter and stamps login times.
func (r *UserRepository) RecordSuccessfulLogin(user *domain.User) error {
	now := time.Now()
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = now
	user.LastActive = now
	return r.db.Model(user).
		Select("login_attempts", "lock_until", "last_login", "last_active").
		Updates(map[string]any{
			"login_attempts": 0,
			"lock_until":     nil,
			"last_login":     now,
			"last_active":    now,
		}).Error
}

// TouchActivity stamps the user's last activity time.
func (r *UserRepository) TouchActivity(userID string) error {
	return r.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_active", time.Now()).Error
}
