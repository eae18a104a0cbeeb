package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionStatus struct {
	SessionID    string `json:"session_id"`
	Ready        bool   `json:"ready"`
	APIKeySource string `json:"api_key_source"`
	InitError    string `json:"init_error,omitempty"`
	Document     string `json:"document"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

type ChatRequest struct {
	Question string `json:"question" schema:"question"`
}

type ChatResponse struct {
	Answer        string `json:"answer"`
	HistoryLength int    `json:"history_length"`
}

type APIKeyRequest struct {
	APIKey string `json:"api_key" schema:"api_key"`
}
