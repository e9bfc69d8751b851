package openai_client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizroyale/quizroyale/internal/models"
)

const batchSystemPrompt = `You are a trivia question writer for a live party quiz.
Respond with strict JSON only, no prose and no markdown fences.`

const batchUserPrompt = `Write exactly %d trivia questions across varied categories
(history, science, geography, pop culture, sports, arts). Questions 1-9 should be
answerable in a few words by a general audience; question %d is the finale and must
be noticeably harder. Respond as:
{"questions":[{"question":"...","answer":"...","category":"..."}]}`

const singleUserPrompt = `Write one trivia question with a short factual answer.
%s
Do not repeat any of these prompts:
%s
Respond as: {"question":"...","answer":"...","category":"..."}`

type questionJSON struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

type batchJSON struct {
	Questions []questionJSON `json:"questions"`
}

// GenerateBatch produces a full game of questions, the last one
// finale-grade.
func (c *OpenAIClient) GenerateBatch(ctx context.Context) ([]models.Question, error) {
	content, err := c.complete(ctx, batchSystemPrompt,
		fmt.Sprintf(batchUserPrompt, models.QuestionCount, models.QuestionCount))
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSON(content)
	if !ok {
		return nil, newFormatError("no JSON object in completion", content)
	}

	var batch batchJSON
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, newFormatError(err.Error(), content)
	}
	if len(batch.Questions) != models.QuestionCount {
		return nil, newFormatError(
			fmt.Sprintf("expected %d questions, got %d", models.QuestionCount, len(batch.Questions)),
			content)
	}

	out := make([]models.Question, len(batch.Questions))
	for i, q := range batch.Questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, newFormatError(fmt.Sprintf("question %d is missing text or answer", i+1), content)
		}
		out[i] = models.Question{
			Question: strings.TrimSpace(q.Question),
			Answer:   strings.TrimSpace(q.Answer),
			Category: strings.TrimSpace(q.Category),
		}
	}
	return out, nil
}

// GenerateOne produces a single question, avoiding the given prompts.
// Finale questions are harder, suitable for the final round or the
// sudden-death tiebreaker.
func (c *OpenAIClient) GenerateOne(ctx context.Context, avoid []string, finale bool) (*models.Question, error) {
	difficulty := "Aim at a general audience."
	if finale {
		difficulty = "Make it noticeably hard, finale-grade; most players should have to think."
	}

	avoidList := "- (none)"
	if len(avoid) > 0 {
		avoidList = "- " + strings.Join(avoid, "\n- ")
	}

	content, err := c.complete(ctx, batchSystemPrompt,
		fmt.Sprintf(singleUserPrompt, difficulty, avoidList))
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSON(content)
	if !ok {
		return nil, newFormatError("no JSON object in completion", content)
	}

	var q questionJSON
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, newFormatError(err.Error(), content)
	}
	if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
		return nil, newFormatError("question is missing text or answer", content)
	}

	return &models.Question{
		Question: strings.TrimSpace(q.Question),
		Answer:   strings.TrimSpace(q.Answer),
		Category: strings.TrimSpace(q.Category),
	}, nil
}
