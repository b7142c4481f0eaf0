package models

import "github.com/golang-jwt/jwt/v5"

// UserRole determines which records an actor may touch.
type UserRole string

const (
	RoleTeacher    UserRole = "teacher"
	RoleSpecialist UserRole = "specialist"
	RoleAdmin      UserRole = "admin"
)

// JWTClaims are the access-token claims attached to each request. Tokens are
// issued by the identity provider in front of this service; here they only
// supply actor identity for evaluator ids and checklist ownership.
type JWTClaims struct {
	UserID   string   `json:"uid"`
	SchoolID string   `json:"school_id"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
