package users

import (
	"fmt"
	"time"

	"unicode"

	"golang.org/x/crypto/bcrypt"
)

type MFAuthType string

const (
	MFNone          MFAuthType = "none"
	MFAuthenticator MFAuthType = "authenticator"
	MFEmail         MFAuthType = "email"
	MFSms           MFAuthType = "sms"
)

// RoleType represents a user's role within their company.
type RoleType string

const (
	RolePrincipalAdmin RoleType = "principal_admin" // Company owner - unrestricted access
	RoleAdmin          RoleType = "admin"           // Can manage users, billing, and all projects
	RoleProjectManager RoleType = "project_manager" // Manages assigned projects, approvals, invoicing
	RoleForeman        RoleType = "foreman"         // Site-level: crews, equipment, timesheets, incidents
	RoleFieldWorker    RoleType = "field_worker"    // Own timesheets and task updates only
	RoleViewer         RoleType = "viewer"          // Read-only access
)

type User struct {
	ID          string     `json:"id,omitempty"`           // Unique identifier for the user
	Email       string     `json:"email,omitempty"`        // User's email address
	FirstName   string     `json:"first_name,omitempty"`   // First name of the user
	LastName    string     `json:"last_name,omitempty"`    // Last name of the user
	Role        RoleType   `json:"role,omitempty"`         // Role within the company
	CompanyID   string     `json:"company_id,omitempty"`   // Company (tenant) the user belongs to
	Phone       string     `json:"phone,omitempty"`        // Contact number shown on crew rosters
	AvatarURL   string     `json:"avatar_url,omitempty"`   // Profile image
	DateJoined  time.Time  `json:"date_joined,omitempty"`  // Date and time when the user registered
	LastLogin   time.Time  `json:"last_login,omitempty"`   // Last time the user logged in
	MFType      MFAuthType `json:"mf_type,omitempty"`      // Multifactor type, empty or "none" means disabled
	OnboardedAt time.Time  `json:"onboarded_at,omitempty"` // When the onboarding wizard completed
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (u *User) MFAAuth() bool {
	return u.MFType != "" && u.MFType != MFNone
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsPrincipalAdmin returns true if the user owns the company account
func (u *User) IsPrincipalAdmin() bool {
	return u.Role == RolePrincipalAdmin
}
