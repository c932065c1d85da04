package models

import (
	"strconv"
	"time"
)

// User is an account that can send and receive direct messages.
type User struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string     `gorm:"type:varchar(64);unique;not null" json:"username"`
	Password   string     `gorm:"not null" json:"-"`
	FullName   string     `gorm:"type:varchar(128)" json:"fullName"`
	ProfilePic string     `gorm:"type:varchar(512)" json:"profilePic,omitempty"`
	LastLogin  *time.Time `gorm:"default:NULL" json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// UserID returns the identity used on messages and channels.
func (u *User) UserID() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}
