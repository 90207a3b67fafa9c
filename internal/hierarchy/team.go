// Package hierarchy models the "my team" neighbourhood of the created_by forest.
package hierarchy

import (
	"cms0/internal/models"
)

// Member is the public shape of a user inside a team view.
type Member struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FirstName        string            `json:"firstName"`
	LastName         string            `json:"lastName"`
	Status           models.UserStatus `json:"status"`
	RoleID           string            `json:"roleId,omitempty"`
	RoleName         string            `json:"roleName,omitempty"`
	CreatedBy        string            `json:"createdBy,omitempty"`
	SubordinateCount int64             `json:"subordinateCount"`
}

func MemberFromUser(u models.User, subordinates int64) Member {
	m := Member{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Status:           u.Status,
		SubordinateCount: subordinates,
	}
	if u.RoleID != nil {
		m.RoleID = *u.RoleID
	}
	if u.Role != nil {
		m.RoleName = u.Role.Name
	}
	if u.CreatedBy != nil {
		m.CreatedBy = *u.CreatedBy
	}
	return m
}

// Team is the local neighbourhood of one user. Superior is nil for forest roots.
type Team struct {
	CurrentUser  Member   `json:"currentUser"`
	Superior     *Member  `json:"superior,omitempty"`
	Siblings     []Member `json:"siblings"`
	Subordinates []Member `json:"subordinates"`
}
