package model

import "time"

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is a teacher or admin account. Students never have users; they enter
// through test links.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
