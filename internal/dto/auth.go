package dto

import "github.com/noah-isme/sma-portal/internal/models"

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier" validate:"required,max=100"`
	Password   string `form:"password" json:"password" validate:"required"`
}

// APITokenRequest exchanges API credentials for an access token.
type APITokenRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	APISecret string `json:"api_secret" validate:"required"`
}

// APITokenResponse carries an issued access token.
type APITokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	User        models.UserInfo `json:"user"`
}

// LanguageRequest switches the interface language.
type LanguageRequest struct {
	Lang string `json:"lang" form:"lang" validate:"required"`
}
