package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of actor roles. Upstream identity providers are
// inconsistent about casing ("agent" vs "Agent"), so everything is normalized
// through ParseRole at the boundary and compared as Role values afterwards.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleAgent    Role = "agent"
	RoleFinance  Role = "finance"
	RoleCustomer Role = "customer"
)

// ParseRole normalizes a raw role string to a Role.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, nil
	case "employee":
		return RoleEmployee, nil
	case "agent":
		return RoleAgent, nil
	case "finance":
		return RoleFinance, nil
	case "customer":
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// CanReview reports whether the role may review pending changes.
func (r Role) CanReview() bool {
	return r == RoleAdmin
}

// CanPropose reports whether the role may submit pending changes.
func (r Role) CanPropose() bool {
	return r == RoleEmployee || r == RoleAgent
}
