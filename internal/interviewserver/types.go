package interviewserver

import (
	"time"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

// InterviewCreateInput is the input for interview_create.
type InterviewCreateInput struct {
	JobPosition      string `json:"job_position,omitempty" jsonschema:"Role being interviewed for. Required in auto mode."`
	JobDesc          string `json:"job_desc,omitempty" jsonschema:"Job description or tech stack"`
	JobExperience    string `json:"job_experience,omitempty" jsonschema:"Years of experience"`
	Mode             string `json:"mode,omitempty" jsonschema:"auto (from the job fields, default) or content (from reference material)"`
	InterviewType    string `json:"interview_type,omitempty" jsonschema:"general (default), behavioral, technical or system-design"`
	Difficulty       string `json:"difficulty,omitempty" jsonschema:"junior, mid (default) or senior"`
	QuestionCount    int    `json:"question_count,omitempty" jsonschema:"3, 5 (default) or 10"`
	Language         string `json:"language,omitempty" jsonschema:"Language code for questions and feedback, default en"`
	ReferenceContent string `json:"reference_content,omitempty" jsonschema:"Reference material for content mode"`
	ReferenceURL     string `json:"reference_url,omitempty" jsonschema:"Page to fetch as reference material when reference_content is empty"`
	ResumeText       string `json:"resume_text,omitempty" jsonschema:"Candidate résumé text, e.g. from resume_extract"`
}

// MockIDInput names one interview.
type MockIDInput struct {
	MockID string `json:"mock_id" jsonschema:"Interview ID returned by interview_create"`
}

// InterviewListInput is the input for interview_list.
type InterviewListInput struct{}

// InterviewView is an interview as returned by the tools.
type InterviewView struct {
	MockID        string                   `json:"mock_id"`
	JobPosition   string                   `json:"job_position"`
	JobDesc       string                   `json:"job_desc,omitempty"`
	JobExperience string                   `json:"job_experience,omitempty"`
	Mode          string                   `json:"mode"`
	InterviewType string                   `json:"interview_type"`
	Difficulty    string                   `json:"difficulty"`
	QuestionCount int                      `json:"question_count"`
	Language      string                   `json:"language"`
	Questions     []interview.QuestionItem `json:"questions,omitempty"`
	CreatedAt     string                   `json:"created_at"`
}

func viewInterview(iv *interview.Interview, withQuestions bool) InterviewView {
	v := InterviewView{
		MockID:        iv.MockID,
		JobPosition:   iv.JobPosition,
		JobDesc:       iv.JobDesc,
		JobExperience: iv.JobExperience,
		Mode:          string(iv.Mode),
		InterviewType: string(iv.Type),
		Difficulty:    string(iv.Difficulty),
		QuestionCount: iv.QuestionCount,
		Language:      iv.Language,
		CreatedAt:     iv.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withQuestions {
		v.Questions = iv.Questions
	}
	return v
}

// InterviewListOutput lists the caller's interviews, newest first.
type InterviewListOutput struct {
	Interviews []InterviewView `json:"interviews"`
}

// AnswerSubmitInput is the input for answer_submit.
type AnswerSubmitInput struct {
	MockID         string `json:"mock_id" jsonschema:"Interview ID"`
	Question       string `json:"question" jsonschema:"Question being answered"`
	ModelAnswer    string `json:"model_answer,omitempty" jsonschema:"Reference answer, empty for follow-ups"`
	UserAnswer     string `json:"user_answer" jsonschema:"Candidate's answer text"`
	Language       string `json:"language,omitempty" jsonschema:"Feedback language, defaults to the interview's"`
	ParentAnswerID int64  `json:"parent_answer_id,omitempty" jsonschema:"Root answer ID when answering a follow-up"`
	Difficulty     string `json:"difficulty,omitempty" jsonschema:"Overrides the interview difficulty"`
}

// AnswerIDInput names one recorded answer.
type AnswerIDInput struct {
	AnswerID int64 `json:"answer_id" jsonschema:"Answer ID returned by answer_submit"`
}

// FollowUpOutput is the output of answer_followup.
type FollowUpOutput struct {
	AnswerID int64  `json:"answer_id"`
	FollowUp string `json:"follow_up"`
}

// AnswerListOutput lists an interview's answers in submission order.
type AnswerListOutput struct {
	MockID  string                 `json:"mock_id"`
	Answers []interview.AnswerView `json:"answers"`
}

// AttachClipInput is the input for answer_attach_clip.
type AttachClipInput struct {
	AnswerID int64  `json:"answer_id" jsonschema:"Answer ID"`
	URL      string `json:"url" jsonschema:"Public URL of the uploaded recording"`
}

// AttachClipOutput confirms a linked clip.
type AttachClipOutput struct {
	AnswerID int64  `json:"answer_id"`
	URL      string `json:"url"`
}

// ReportInput is the input for interview_report.
type ReportInput struct {
	MockID string `json:"mock_id" jsonschema:"Interview ID"`
	Format string `json:"format,omitempty" jsonschema:"json (default), markdown or html"`
}

// ReportOutput is the output of interview_report.
type ReportOutput struct {
	Report   interview.Report `json:"report"`
	Markdown string           `json:"markdown,omitempty"`
	HTML     string           `json:"html,omitempty"`
}

// ResumeExtractInput is the input for resume_extract.
type ResumeExtractInput struct {
	Data        string `json:"data" jsonschema:"PDF file, base64-encoded"`
	ContentType string `json:"content_type,omitempty" jsonschema:"MIME type, must be application/pdf when set"`
	MaxChars    int    `json:"max_chars,omitempty" jsonschema:"Cap on returned characters, default 8000"`
}

// ResumeExtractOutput is the output of resume_extract.
type ResumeExtractOutput struct {
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}
