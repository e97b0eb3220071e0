package devidp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a lecturer account known to the development provider.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	NIP          string `json:"nip,omitempty"`
	PasswordHash string `json:"-"`
	Blocked      bool   `json:"blocked,omitempty"`
}

func NewUser(username, password, name, email string) (*User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Users is an in-memory user directory keyed by username.
type Users struct {
	byUsername map[string]*User
	lock       sync.RWMutex
}

func NewUsers() *Users {
	return &Users{byUsername: make(map[string]*User)}
}

func (u *Users) Upsert(user *User) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.byUsername[strings.ToLower(user.Username)] = user
}

func (u *Users) GetByUsername(username string) (*User, bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()
	user, ok := u.byUsername[strings.ToLower(username)]
	return user, ok
}

func (u *Users) GetByID(id string) (*User, bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()
	for _, user := range u.byUsername {
		if user.ID == id {
			return user, true
		}
	}
	return nil, false
}

// Authenticate returns the user when the password matches and the account is not blocked.
func (u *Users) Authenticate(username, password string) (*User, bool) {
	user, ok := u.GetByUsername(username)
	if !ok || user.Blocked || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, false
	}
	return user, true
}
