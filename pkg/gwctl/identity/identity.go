// Package identity holds the user and team descriptions shared by the issuer
// API responses, token claims and stored credentials.
package identity

type UserInfo struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}

type TeamInfo struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Display renders "Name (email)", falling back to whichever part is set.
func (u *UserInfo) Display() string {
	if u == nil {
		return ""
	}
	switch {
	case u.Name != "" && u.Email != "":
		return u.Name + " (" + u.Email + ")"
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
