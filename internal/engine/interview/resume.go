package interview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/ledongthuc/pdf"
)

// MaxResumeBytes caps uploaded résumé PDFs.
const MaxResumeBytes = 5 << 20

var (
	ErrResumeTooLarge = errors.New("resume exceeds 5 MB")
	ErrNotPDF         = errors.New("resume must be a PDF")
	ErrNoText         = errors.New("no extractable text in PDF")
)

// ExtractResumeText returns the plain text of a PDF résumé, whitespace-collapsed
// and capped at maxChars runes (0 = no cap).
func ExtractResumeText(data []byte, contentType string, maxChars int) (string, error) {
	if len(data) > MaxResumeBytes {
		return "", ErrResumeTooLarge
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" && !strings.HasPrefix(ct, "application/pdf") {
		return "", fmt.Errorf("%w: got %s", ErrNotPDF, contentType)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", ErrNotPDF
	}

	text, err := readPDFText(data)
	if err != nil {
		return "", err
	}
	text = engine.CollapseSpaces(text)
	if text == "" {
		return "", ErrNoText
	}
	if maxChars > 0 {
		text = engine.TruncateRunes(text, maxChars, "")
	}
	return text, nil
}

func readPDFText(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(out), nil
}
