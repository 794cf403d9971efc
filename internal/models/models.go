// Package models defines the core data structures for CardDesk.
//
// It includes the account records served by the dispatcher, the conversation types
// carried between turns, and the JSON envelopes returned by the HTTP API.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum accepted length of a single chat utterance
	MaxMessageLength = 4096
	// MaxFeedbackCommentLength defines the maximum allowed length for feedback comments
	MaxFeedbackCommentLength = 1000
	// MinFeedbackRating is the lowest accepted feedback rating
	MinFeedbackRating = 1
	// MaxFeedbackRating is the highest accepted feedback rating
	MaxFeedbackRating = 5
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage         = errors.New("message is required")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong       = errors.New("comment exceeds maximum length")
	ErrEmptyAccountNo       = errors.New("account number cannot be empty")
	ErrInvalidAccountStatus = errors.New("invalid account status")
)

// ChatRequest is the inbound body of POST /handle_chat when sent as JSON.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate checks that the chat request carries a usable message.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the exact body returned by POST /handle_chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Validate performs validation on a FeedbackRequest.
func (r FeedbackRequest) Validate() error {
	if r.Rating < MinFeedbackRating || r.Rating > MaxFeedbackRating {
		return ErrInvalidRating
	}
	if len(r.Comment) > MaxFeedbackCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// Feedback is a rating left by a chat user, archived by the store.
type Feedback struct {
	SessionID string `json:"session_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	Time      int64  `json:"time"`
}

// NewFeedback builds a Feedback record for the given session stamped with the current time.
func NewFeedback(sessionID string, req FeedbackRequest) Feedback {
	return Feedback{
		SessionID: sessionID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Time:      time.Now().Unix(),
	}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Recorded creates a recorded API response.
func Recorded() APIResponse {
	return APIResponse{Status: string(APIStatusRecorded)}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
