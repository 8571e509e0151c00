// Package domain contains entity without logic, just meta-data
package domain

import "time"

type UserID string

type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
	StatusAway    UserStatus = "AWAY"
)

type User struct {
	ID        UserID     `json:"id"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatarUrl,omitempty"`
	Status    UserStatus `json:"status"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}
