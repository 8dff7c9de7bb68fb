package database

import (
	"time"
)

// User represents a support portal account.
type User struct {
	ID                   int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID               string      `json:"userId" gorm:"uniqueIndex:uq_users_user_id;not null;<-:create"`
	FirstName            string      `json:"firstName"`
	LastName             string      `json:"lastName"`
	Username             string      `json:"username" gorm:"uniqueIndex:uq_users_username;not null"`
	Email                string      `json:"email" gorm:"uniqueIndex:uq_users_email;not null"`
	PasswordHash         string      `json:"-" gorm:"column:password;not null"`
	ProfileImageURL      string      `json:"profileImageUrl"`
	LastLoginDate        *time.Time  `json:"lastLoginDate"`
	LastLoginDateDisplay *time.Time  `json:"lastLoginDateDisplay"`
	JoinDate             time.Time   `json:"joinDate" gorm:"not null;<-:create"`
	Role                 string      `json:"role" gorm:"not null"`
	Authorities          StringArray `json:"authorities" gorm:"type:text[]"`
	Enabled              bool        `json:"active" gorm:"not null"`
	NonLocked            bool        `json:"notLocked" gorm:"not null"`
	// AutoLocked is set when the lockout threshold locked the account, as
	// opposed to an operator. Only automatic locks are lifted on reassessment.
	AutoLocked bool `json:"-" gorm:"not null"`
}

func (u *User) TableName() string {
	return "users"
}

func (u *User) Locked() bool {
	return !u.NonLocked
}

func (u *User) GetUsername() string {
	return u.Username
}

func (u *User) GetRole() string {
	return u.Role
}

func (u *User) GetAuthorities() []string {
	return []string(u.Authorities)
}
