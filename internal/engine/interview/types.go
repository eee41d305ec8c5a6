// Package interview implements mock interview generation, answer scoring,
// follow-up questions, persistence, clip storage and reporting.
package interview

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse means the model returned text that does not match the expected shape.
	// The call is safe to retry.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrNotFound is returned when a record does not exist or belongs to another caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParent is returned when a follow-up names a parent that is missing,
	// belongs to another interview or is itself a follow-up.
	ErrInvalidParent = errors.New("invalid parent answer")
	// ErrEmptyAnswer is returned when an answer has no text.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrInvalidOptions is returned for unsupported interview options.
	ErrInvalidOptions = errors.New("invalid interview options")
)

// Type is the interview flavour.
type Type string

const (
	TypeGeneral      Type = "general"
	TypeBehavioral   Type = "behavioral"
	TypeTechnical    Type = "technical"
	TypeSystemDesign Type = "system-design"
)

// Difficulty is the seniority the questions target.
type Difficulty string

const (
	DifficultyJunior Difficulty = "junior"
	DifficultyMid    Difficulty = "mid"
	DifficultySenior Difficulty = "senior"
)

// Mode selects what questions are generated from.
type Mode string

const (
	ModeAuto    Mode = "auto"    // job position, description and experience
	ModeContent Mode = "content" // reference material
)

// QuestionItem is one generated question with its model answer.
type QuestionItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// JobContext describes the role being interviewed for.
type JobContext struct {
	Position   string `json:"job_position"`
	Desc       string `json:"job_desc"`
	Experience string `json:"job_experience"`
}

// Options control question generation.
type Options struct {
	Mode             Mode       `json:"mode"`
	Type             Type       `json:"interview_type"`
	Difficulty       Difficulty `json:"difficulty"`
	Count            int        `json:"question_count"`
	Language         string     `json:"language"`
	ReferenceContent string     `json:"reference_content,omitempty"`
	ResumeText       string     `json:"resume_text,omitempty"`
}

// Normalize fills defaults and validates the option set.
func (o Options) Normalize() (Options, error) {
	o.Mode = Mode(strings.ToLower(strings.TrimSpace(string(o.Mode))))
	if o.Mode == "" {
		o.Mode = ModeAuto
	}
	o.Type = Type(strings.ToLower(strings.TrimSpace(string(o.Type))))
	if o.Type == "" {
		o.Type = TypeGeneral
	}
	o.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(o.Difficulty))))
	if o.Difficulty == "" {
		o.Difficulty = DifficultyMid
	}
	if o.Count == 0 {
		o.Count = 5
	}
	if strings.TrimSpace(o.Language) == "" {
		o.Language = "en"
	}

	switch o.Mode {
	case ModeAuto, ModeContent:
	default:
		return o, fmt.Errorf("%w: mode %q", ErrInvalidOptions, o.Mode)
	}
	switch o.Type {
	case TypeGeneral, TypeBehavioral, TypeTechnical, TypeSystemDesign:
	default:
		return o, fmt.Errorf("%w: interview type %q", ErrInvalidOptions, o.Type)
	}
	switch o.Difficulty {
	case DifficultyJunior, DifficultyMid, DifficultySenior:
	default:
		return o, fmt.Errorf("%w: difficulty %q", ErrInvalidOptions, o.Difficulty)
	}
	switch o.Count {
	case 3, 5, 10:
	default:
		return o, fmt.Errorf("%w: question count %d (want 3, 5 or 10)", ErrInvalidOptions, o.Count)
	}
	if o.Mode == ModeContent && strings.TrimSpace(o.ReferenceContent) == "" {
		return o, fmt.Errorf("%w: content mode needs reference material", ErrInvalidOptions)
	}
	return o, nil
}

// Interview is a persisted mock interview.
type Interview struct {
	MockID        string         `json:"mock_id"`
	JobPosition   string         `json:"job_position"`
	JobDesc       string         `json:"job_desc"`
	JobExperience string         `json:"job_experience"`
	Mode          Mode           `json:"mode"`
	Type          Type           `json:"interview_type"`
	Difficulty    Difficulty     `json:"difficulty"`
	QuestionCount int            `json:"question_count"`
	Language      string         `json:"language"`
	Reference     string         `json:"reference_content,omitempty"`
	ResumeText    string         `json:"resume_text,omitempty"`
	Questions     []QuestionItem `json:"questions"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Job returns the job context the interview was generated from.
func (iv *Interview) Job() JobContext {
	return JobContext{Position: iv.JobPosition, Desc: iv.JobDesc, Experience: iv.JobExperience}
}

// AnswerSubmission is an answer about to be scored and recorded.
type AnswerSubmission struct {
	MockID         string     `json:"mock_id"`
	Question       string     `json:"question"`
	ModelAnswer    string     `json:"model_answer"`
	UserAnswer     string     `json:"user_answer"`
	Language       string     `json:"language"`
	ParentAnswerID *int64     `json:"parent_answer_id,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
}

// IsFollowUp reports whether the submission answers a follow-up question.
func (s AnswerSubmission) IsFollowUp() bool { return s.ParentAnswerID != nil }

// AnswerRecord is a persisted, scored answer.
type AnswerRecord struct {
	ID             int64      `json:"id"`
	MockID         string     `json:"mock_id"`
	Question       string     `json:"question"`
	CorrectAnswer  string     `json:"correct_answer"`
	UserAnswer     string     `json:"user_answer"`
	Feedback       Feedback   `json:"-"`
	Rating         int        `json:"rating"`
	Language       string     `json:"language"`
	ParentAnswerID *int64     `json:"parent_answer_id,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	VideoURL       string     `json:"video_url,omitempty"`
	UserEmail      string     `json:"user_email"`
	CreatedAt      time.Time  `json:"created_at"`
}
