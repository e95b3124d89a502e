package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one candidate's recorded answer to an interview question.
// The worker only reads raw_path and flips the compression flags; the rest
// of the row belongs to the interview API.
type Answer struct {
	ID                   uuid.UUID `json:"id"`
	InterviewID          uuid.UUID `json:"interview_id"`
	QuestionID           uuid.UUID `json:"question_id"`
	CandidateToken       string    `json:"candidate_token,omitempty"`
	RawPath              string    `json:"raw_path,omitempty"`
	MimeType             string    `json:"mime_type,omitempty"`
	IsCompressed         bool      `json:"is_compressed"`
	CompressionSucceeded bool      `json:"compression_succeeded"`
	CompressionAttempts  int       `json:"compression_attempts"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
