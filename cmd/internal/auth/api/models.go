package authapi

import "time"

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Platform string `json:"platform"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Platform string `json:"platform"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Platform     string `json:"platform"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type principalResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type registerResponse struct {
	Principal principalResponse `json:"principal"`
	Session   sessionResponse   `json:"session"`
}

type loginResponse struct {
	Principal principalResponse `json:"principal"`
	Session   sessionResponse   `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	Principal principalResponse `json:"principal"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

type roleResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type rolesResponse struct {
	Roles []roleResponse `json:"roles"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createPermissionRequest struct {
	Name string `json:"name"`
}

type createPermissionResponse struct {
	Name string `json:"name"`
}

type grantRequest struct {
	Role       string `json:"role"`
	Permission string `json:"permission"`
}

type assignRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}
