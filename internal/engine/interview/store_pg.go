package interview

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PGStore is a Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("interview postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

func (s *PGStore) CreateInterview(ctx context.Context, iv *Interview) error {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO mock_interview (mock_id, json_mock_resp, job_position, job_desc, job_experience,
			mode, interview_type, difficulty, question_count, language, reference_content, resume_text,
			created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		iv.MockID, questions, iv.JobPosition, iv.JobDesc, iv.JobExperience,
		string(iv.Mode), string(iv.Type), string(iv.Difficulty), iv.QuestionCount, iv.Language,
		iv.Reference, iv.ResumeText, iv.CreatedBy, iv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

const pgInterviewCols = `mock_id, json_mock_resp, job_position, job_desc, job_experience, mode,
	interview_type, difficulty, question_count, language, reference_content, resume_text, created_by, created_at`

func scanPGInterview(row pgx.Row) (*Interview, error) {
	var (
		iv                    Interview
		questions             []byte
		mode, typ, difficulty string
	)
	if err := row.Scan(&iv.MockID, &questions, &iv.JobPosition, &iv.JobDesc, &iv.JobExperience, &mode,
		&typ, &difficulty, &iv.QuestionCount, &iv.Language, &iv.Reference, &iv.ResumeText,
		&iv.CreatedBy, &iv.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &iv.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for %s: %w", iv.MockID, err)
	}
	iv.Mode, iv.Type, iv.Difficulty = Mode(mode), Type(typ), Difficulty(difficulty)
	return &iv, nil
}

func (s *PGStore) GetInterview(ctx context.Context, mockID string) (*Interview, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgInterviewCols+` FROM mock_interview WHERE mock_id = $1 AND created_by = $2`,
		mockID, id.Email)
	iv, err := scanPGInterview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", mockID, ErrNotFound)
	}
	return iv, err
}

func (s *PGStore) ListInterviews(ctx context.Context) ([]Interview, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgInterviewCols+` FROM mock_interview WHERE created_by = $1 ORDER BY created_at DESC, id DESC`,
		id.Email)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		iv, err := scanPGInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

func (s *PGStore) RecordAnswer(ctx context.Context, rec *AnswerRecord) error {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var owned bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM mock_interview WHERE mock_id = $1 AND created_by = $2)`,
		rec.MockID, id.Email).Scan(&owned); err != nil {
		return fmt.Errorf("check interview: %w", err)
	}
	if !owned {
		return fmt.Errorf("interview %s: %w", rec.MockID, ErrNotFound)
	}

	if rec.ParentAnswerID != nil {
		var ok bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_answer
			 WHERE id = $1 AND mock_id_ref = $2 AND user_email = $3 AND parent_answer_id IS NULL)`,
			*rec.ParentAnswerID, rec.MockID, id.Email).Scan(&ok); err != nil {
			return fmt.Errorf("check parent: %w", err)
		}
		if !ok {
			return fmt.Errorf("answer %d: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_answer WHERE parent_answer_id = $1)`,
			*rec.ParentAnswerID).Scan(&ok); err != nil {
			return fmt.Errorf("check follow-up: %w", err)
		}
		if ok {
			return fmt.Errorf("answer %d already has a follow-up: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
	}

	rec.UserEmail = id.Email
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var video *string
	if rec.VideoURL != "" {
		video = &rec.VideoURL
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO user_answer (mock_id_ref, question, correct_ans, user_ans, feedback, rating, language,
			parent_answer_id, difficulty, video_url, user_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		rec.MockID, rec.Question, rec.CorrectAnswer, rec.UserAnswer, EncodeFeedback(rec.Feedback), rec.Rating,
		rec.Language, rec.ParentAnswerID, string(rec.Difficulty), video, rec.UserEmail, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && rec.ParentAnswerID != nil {
			return fmt.Errorf("answer %d already has a follow-up: %w", *rec.ParentAnswerID, ErrInvalidParent)
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return tx.Commit(ctx)
}

const pgAnswerCols = `id, mock_id_ref, question, correct_ans, user_ans, feedback, rating, language,
	parent_answer_id, difficulty, COALESCE(video_url, ''), user_email, created_at`

func scanPGAnswer(row pgx.Row) (*AnswerRecord, error) {
	var (
		rec        AnswerRecord
		feedback   string
		difficulty string
	)
	if err := row.Scan(&rec.ID, &rec.MockID, &rec.Question, &rec.CorrectAnswer, &rec.UserAnswer, &feedback,
		&rec.Rating, &rec.Language, &rec.ParentAnswerID, &difficulty, &rec.VideoURL, &rec.UserEmail,
		&rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Feedback = DecodeFeedback(feedback)
	rec.Difficulty = Difficulty(difficulty)
	return &rec, nil
}

func (s *PGStore) GetAnswer(ctx context.Context, answerID int64) (*AnswerRecord, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgAnswerCols+` FROM user_answer WHERE id = $1 AND user_email = $2`, answerID, id.Email)
	rec, err := scanPGAnswer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("answer %d: %w", answerID, ErrNotFound)
	}
	return rec, err
}

func (s *PGStore) AttachClipURL(ctx context.Context, answerID int64, url string) error {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_answer SET video_url = $1 WHERE id = $2 AND user_email = $3`, url, answerID, id.Email)
	if err != nil {
		return fmt.Errorf("attach clip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("answer %d: %w", answerID, ErrNotFound)
	}
	return nil
}

func (s *PGStore) ListAnswers(ctx context.Context, mockID string) ([]AnswerRecord, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgAnswerCols+` FROM user_answer WHERE mock_id_ref = $1 AND user_email = $2 ORDER BY id`,
		mockID, id.Email)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []AnswerRecord
	for rows.Next() {
		rec, err := scanPGAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
