package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/chat"
	"github.com/Bekzhanizb/LifeQuestBackend/llm"
	"github.com/Bekzhanizb/LifeQuestBackend/pdftext"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

const assignmentsPrompt = `You are an expert academic assistant. Extract all assignments and their due dates from the syllabus text below.

Output ONLY a JSON object of the form
{"assignments": [{"assignment_name": string, "due_date": "YYYY-MM-DD", "description": string}]}
Use the year %d when the syllabus omits it. Use an empty string when there is no description.
Do not include any other text or markdown.

Syllabus Text:
---
%s
---`

type Assignment struct {
	Name        string `json:"assignment_name"`
	DueDate     string `json:"due_date"`
	Description string `json:"description"`
}

type assignmentList struct {
	Assignments []Assignment `json:"assignments"`
}

// TextExtractor returns the plain text of the document at path.
type TextExtractor func(path string) (string, error)

type SyllabusSpecialist struct {
	client    llm.Client
	extract   TextExtractor
	uploadDir string
	year      int
}

func NewSyllabusSpecialist(client llm.Client, uploadDir string, year int) *SyllabusSpecialist {
	return &SyllabusSpecialist{client: client, extract: pdftext.Extract, uploadDir: uploadDir, year: year}
}

func (s *SyllabusSpecialist) Intent() Intent { return IntentSyllabus }

func (s *SyllabusSpecialist) Handle(ctx context.Context, req Request, dec Decision) (string, error) {
	const op = "agent.syllabus"

	path, ok := s.resolvePath(req, dec)
	if !ok {
		return "Please upload your syllabus as a PDF and I'll pull out the assignments.", nil
	}

	text, err := s.extract(path)
	if err != nil {
		utils.Logger.Warn("syllabus_extract_failed", zap.String("user_id", req.UserID), zap.Error(err))
		return "I couldn't read any text from that PDF. Is it a scanned image?", nil
	}
	utils.Logger.Info("syllabus_text_extracted",
		zap.String("user_id", req.UserID),
		zap.Int("chars", len(text)),
	)

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:   llm.TaskSyllabus,
		Prompt: fmt.Sprintf(assignmentsPrompt, s.year, text),
		JSON:   true,
	})
	if errors.Is(err, llm.ErrMissingCredential) {
		return chat.MissingKeyMessage, nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, op, "the assistant is unavailable right now", err)
	}

	list, err := llm.ExtractJSON[assignmentList](resp.Text, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, op, "the assistant returned an unreadable answer", err)
	}
	return FormatAssignments(list.Assignments), nil
}

// resolvePath prefers the uploaded file. A path from the payload is only
// accepted inside the upload directory.
func (s *SyllabusSpecialist) resolvePath(req Request, dec Decision) (string, bool) {
	if req.FilePath != "" {
		return req.FilePath, true
	}
	if len(dec.Payload) == 0 || s.uploadDir == "" {
		return "", false
	}
	var p struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(dec.Payload, &p); err != nil || p.FilePath == "" {
		return "", false
	}
	if !withinDir(s.uploadDir, p.FilePath) {
		utils.Logger.Warn("syllabus_path_rejected", zap.String("user_id", req.UserID), zap.String("path", p.FilePath))
		return "", false
	}
	return p.FilePath, true
}

// FormatAssignments renders assignments as a numbered list ordered by due
// date, e.g. "1. AI project\n- Due Date: Sep 29, 2025".
func FormatAssignments(items []Assignment) string {
	named := make([]Assignment, 0, len(items))
	for _, a := range items {
		if strings.TrimSpace(a.Name) != "" {
			named = append(named, a)
		}
	}
	if len(named) == 0 {
		return "I couldn't find any assignments with due dates in that syllabus."
	}

	sort.SliceStable(named, func(i, j int) bool {
		di, okI := parseDue(named[i].DueDate)
		dj, okJ := parseDue(named[j].DueDate)
		if okI != okJ {
			return okI
		}
		return okI && di.Before(dj)
	})

	blocks := make([]string, 0, len(named))
	for i, a := range named {
		due := "TBD"
		if d, ok := parseDue(a.DueDate); ok {
			due = d.Format("Jan 2, 2006")
		} else if strings.TrimSpace(a.DueDate) != "" {
			due = strings.TrimSpace(a.DueDate)
		}
		block := fmt.Sprintf("%d. %s\n- Due Date: %s", i+1, strings.TrimSpace(a.Name), due)
		if desc := strings.TrimSpace(a.Description); desc != "" {
			block += "\n- Description: " + desc
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func parseDue(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t, err == nil
}

func withinDir(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
