package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleFaculty UserRole = "faculty"
	RoleAdmin   UserRole = "admin"
)

// User is read from the identity provider; this service never owns user data.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	// Scope membership used by the ranking engine.
	DepartmentID *string `json:"department_id,omitempty"`
	CollegeID    *string `json:"college_id,omitempty"`
}

func (u *User) IsStaff() bool {
	return u.Role == RoleFaculty || u.Role == RoleAdmin
}
