// Package users manages user accounts: paginated listing with search, bulk
// creation, profile edits, soft deletion, and external-identity lookups for
// SSO provisioning.
package users

import (
	"time"

	"github.com/wardenhq/warden/pkg/auth"
)

// User is a user account row. Password holds the bcrypt hash and never
// serializes.
type User struct {
	ID           int64             `json:"id"`
	UserName     string            `json:"userName"`
	NickName     string            `json:"nickName"`
	Password     string            `json:"-"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Note         string            `json:"note"`
	HeadImg      string            `json:"headImg"`
	OpenID       string            `json:"-"`
	RegisterType auth.RegisterType `json:"registerType"`
	IsDelete     bool              `json:"-"`
	CreateTime   time.Time         `json:"createTime"`
	UpdateTime   time.Time         `json:"updateTime"`
}

// NewUser is the payload for creating an account. Password is plaintext here
// and hashed before storage.
type NewUser struct {
	UserName string `json:"userName"`
	NickName string `json:"nickName"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Note     string `json:"note"`
}

// ProfileEdit is the mutable subset of a user profile.
type ProfileEdit struct {
	NickName string `json:"nickName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Note     string `json:"note"`
	HeadImg  string `json:"headImg"`
}
