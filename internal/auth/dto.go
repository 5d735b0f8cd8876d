package auth

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the profile shape returned alongside a fresh access token.
type UserView struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        RoleClaim `json:"role"`
	Permissions []string  `json:"permissions"`
}

// LoginResponse is the login/refresh response body. The refresh token itself
// travels only in the HttpOnly cookie, never in the body.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	User        *UserView `json:"user,omitempty"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// Validate checks required fields and returns a ValidationError on failure.
func (d LoginDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}
