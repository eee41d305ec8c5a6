package interview

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_interview/internal/auth"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS mock_interview (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	mock_id           TEXT NOT NULL UNIQUE,
	json_mock_resp    TEXT NOT NULL,
	job_position      TEXT NOT NULL DEFAULT '',
	job_desc          TEXT NOT NULL DEFAULT '',
	job_experience    TEXT NOT NULL DEFAULT '',
	mode              TEXT NOT NULL DEFAULT 'auto',
	interview_type    TEXT NOT NULL DEFAULT 'general',
	difficulty        TEXT NOT NULL DEFAULT 'mid',
	question_count    INTEGER NOT NULL DEFAULT 5,
	language          TEXT NOT NULL DEFAULT 'en',
	reference_content TEXT NOT NULL DEFAULT '',
	resume_text       TEXT NOT NULL DEFAULT '',
	created_by        TEXT NOT NULL,
	created_at        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_answer (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	mock_id_ref      TEXT NOT NULL REFERENCES mock_interview (mock_id) ON DELETE CASCADE,
	question         TEXT NOT NULL,
	correct_ans      TEXT NOT NULL DEFAULT '',
	user_ans         TEXT NOT NULL,
	feedback         TEXT NOT NULL DEFAULT '',
	rating           INTEGER NOT NULL,
	language         TEXT NOT NULL DEFAULT 'en',
	parent_answer_id INTEGER REFERENCES user_answer (id) ON DELETE CASCADE,
	difficulty       TEXT NOT NULL DEFAULT 'mid',
	video_url        TEXT,
	user_email       TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS user_answer_mock_idx ON user_answer (mock_id_ref, user_email);
CREATE UNIQUE INDEX IF NOT EXISTS user_answer_parent_uniq ON user_answer (parent_answer_id)
	WHERE parent_answer_id IS NOT NULL;
`

// SQLiteStore is a Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func sqliteTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseSQLiteTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func (s *SQLiteStore) CreateInterview(ctx context.Context, iv *Interview) error {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return err
	}
	questions, err := json.Marshal(iv.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	iv.CreatedBy = id.Email
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mock_interview (mock_id, json_mock_resp, job_position, job_desc, job_experience,
			mode, interview_type, difficulty, question_count, language, reference_content, resume_text,
			created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.MockID, string(questions), iv.JobPosition, iv.JobDesc, iv.JobExperience,
		string(iv.Mode), string(iv.Type), string(iv.Difficulty), iv.QuestionCount, iv.Language,
		iv.Reference, iv.ResumeText, iv.CreatedBy, sqliteTime(iv.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

const sqliteInterviewCols = `mock_id, json_mock_resp, job_position, job_desc, job_experience, mode,
	interview_type, difficulty, question_count, language, reference_content, resume_text, created_by, created_at`

func scanSQLiteInterview(row interface{ Scan(...any) error }) (*Interview, error) {
	var (
		iv                    Interview
		questions, created    string
		mode, typ, difficulty string
	)
	if err := row.Scan(&iv.MockID, &questions, &iv.JobPosition, &iv.JobDesc, &iv.JobExperience, &mode,
		&typ, &difficulty, &iv.QuestionCount, &iv.Language, &iv.Reference, &iv.ResumeText,
		&iv.CreatedBy, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &iv.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for %s: %w", iv.MockID, err)
	}
	iv.Mode, iv.Type, iv.Difficulty = Mode(mode), Type(typ), Difficulty(difficulty)
	iv.CreatedAt = parseSQLiteTime(created)
	return &iv, nil
}

func (s *SQLiteStore) GetInterview(ctx context.Context, mockID string) (*Interview, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteInterviewCols+` FROM mock_interview WHERE mock_id = ? AND created_by = ?`,
		mockID, id.Email)
	iv, err := scanSQLiteInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", mockID, ErrNotFound)
	}
	return iv, err
}

func (s *SQLiteStore) ListInterviews(ctx context.Context) ([]Interview, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteInterviewCols+` FROM mock_interview WHERE created_by = ? ORDER BY created_at DESC, id DESC`,
		id.Email)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		iv, err := scanSQLiteInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecordAnswer(ctx context.Context, rec *AnswerRecord) error {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var owned int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mock_interview WHERE mock_id = ? AND created_by = ?`,
		rec.MockID, id.Email).Scan(&owned); err != nil {
		return fmt.Errorf("check interview: %w", err)
	}
	if owned == 0 {
		return fmt.Errorf("interview %s: %w", rec.MockID, ErrNotFound)
	}

	if rec.ParentAnswerID != nil {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_answer
			 WHERE id = ? AND mock_id_ref = ? AND user_email = ? AND parent_answer_id IS NULL`,
			*rec.ParentAnswerID, rec.MockID, id.Email).Scan(&n); err != nil {
			return fmt.Errorf("check parent: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("answer %d: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_answer WHERE parent_answer_id = ?`,
			*rec.ParentAnswerID).Scan(&n); err != nil {
			return fmt.Errorf("check follow-up: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("answer %d already has a follow-up: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
	}

	rec.UserEmail = id.Email
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var parent any
	if rec.ParentAnswerID != nil {
		parent = *rec.ParentAnswerID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_answer (mock_id_ref, question, correct_ans, user_ans, feedback, rating, language,
			parent_answer_id, difficulty, video_url, user_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MockID, rec.Question, rec.CorrectAnswer, rec.UserAnswer, EncodeFeedback(rec.Feedback), rec.Rating,
		rec.Language, parent, string(rec.Difficulty), nullString(rec.VideoURL), rec.UserEmail, sqliteTime(rec.CreatedAt))
	if err != nil {
		if rec.ParentAnswerID != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("answer %d already has a follow-up: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert answer id: %w", err)
	}
	return tx.Commit()
}

const sqliteAnswerCols = `id, mock_id_ref, question, correct_ans, user_ans, feedback, rating, language,
	parent_answer_id, difficulty, COALESCE(video_url, ''), user_email, created_at`

func scanSQLiteAnswer(row interface{ Scan(...any) error }) (*AnswerRecord, error) {
	var (
		rec               AnswerRecord
		feedback, created string
		difficulty        string
		parent            sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.MockID, &rec.Question, &rec.CorrectAnswer, &rec.UserAnswer, &feedback,
		&rec.Rating, &rec.Language, &parent, &difficulty, &rec.VideoURL, &rec.UserEmail, &created); err != nil {
		return nil, err
	}
	rec.Feedback = DecodeFeedback(feedback)
	rec.Difficulty = Difficulty(difficulty)
	if parent.Valid {
		p := parent.Int64
		rec.ParentAnswerID = &p
	}
	rec.CreatedAt = parseSQLiteTime(created)
	return &rec, nil
}

func (s *SQLiteStore) GetAnswer(ctx context.Context, answerID int64) (*AnswerRecord, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAnswerCols+` FROM user_answer WHERE id = ? AND user_email = ?`, answerID, id.Email)
	rec, err := scanSQLiteAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("answer %d: %w", answerID, ErrNotFound)
	}
	return rec, err
}

func (s *SQLiteStore) AttachClipURL(ctx context.Context, answerID int64, url string) error {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_answer SET video_url = ? WHERE id = ? AND user_email = ?`, url, answerID, id.Email)
	if err != nil {
		return fmt.Errorf("attach clip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("answer %d: %w", answerID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, mockID string) ([]AnswerRecord, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAnswerCols+` FROM user_answer WHERE mock_id_ref = ? AND user_email = ? ORDER BY id`,
		mockID, id.Email)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []AnswerRecord
	for rows.Next() {
		rec, err := scanSQLiteAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
