package entities

import (
	"errors"
	"time"
)

// User represents a registered account that owns analysis records.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	RegisteredAt   time.Time `json:"fecha_registro"`
}

// Analysis is one persisted classification attempt. Result is nil when the
// pipeline ran but classification was skipped (empty or irrelevant input).
type Analysis struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"usuario_id"`
	AnalyzedText string    `json:"texto_analizado"`
	Result       *string   `json:"resultado"`
	SessionID    *string   `json:"session_id"`
	Origin       *string   `json:"origen"`
	CreatedAt    time.Time `json:"fecha"`
}

// Diagnosis is the fraud label extracted from the classifier output.
type Diagnosis string

const (
	DiagnosisFraud    Diagnosis = "Estafa"
	DiagnosisNotFraud Diagnosis = "No Estafa"
	DiagnosisUnknown  Diagnosis = "Desconocido"
)

// Verdict is the structured result of one classification. RiskScore is
// always in [0,100]; extraction failures degrade to a moderate default
// instead of leaving the field absent.
type Verdict struct {
	Diagnosis   Diagnosis `json:"diagnostico"`
	Explanation string    `json:"explicacion"`
	RiskScore   int       `json:"riesgo"`
}

// Domain validation methods
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// Validate does not require AnalyzedText: a record is written even when
// the pipeline ran and produced nothing, so "ran but empty" stays
// distinguishable from "never ran".
func (a *Analysis) Validate() error {
	if a.UserID == 0 {
		return errors.New("user id is required")
	}
	return nil
}
