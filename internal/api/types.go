package api

import "time"

// RegisterRequest is the payload for user registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for user login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries the time-boxed bearer credential
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserResponse is the public rendering of a user account
type UserResponse struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"fecha_registro"`
}

// TextAnalysisRequest is the payload for the text-only path
type TextAnalysisRequest struct {
	Text      string `json:"texto"`
	SessionID string `json:"session_id,omitempty"`
	Origin    string `json:"origen,omitempty"`
}

// TextAnalysisResponse carries the rendered verdict
type TextAnalysisResponse struct {
	Result string `json:"resultado"`
}

// TranscriptionResponse carries a transcription-only result
type TranscriptionResponse struct {
	Transcript string `json:"transcripcion"`
}

// AudioStreamResponse is the per-chunk answer of the audio pipeline.
// Diagnostico is null when classification was skipped.
type AudioStreamResponse struct {
	SessionID  string  `json:"session_id"`
	Transcript string  `json:"transcripcion"`
	Result     *string `json:"diagnostico"`
	ScratchRef string  `json:"ruta_archivo"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
