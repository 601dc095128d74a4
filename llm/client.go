// Package llm talks to an OpenAI-compatible chat API to estimate nutrition
// for menu items that carry no structured nutrition data.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/models"
)

// Client is a lightweight OpenAI-compatible API client for nutrition
// estimation. It uses net/http directly; no third-party SDK needed.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates an estimator client from config. Pass nil to use a
// default http.Client.
func NewClient(cfg config.EstimatorConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
	}
}

// EstimateRequest describes the item the estimator should reason about.
type EstimateRequest struct {
	ItemName    string
	Restaurant  string
	Description string
	PortionSize string
}

// Nutrition is the estimator's parsed reply.
type Nutrition struct {
	Calories     int
	ProteinGrams float64
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// reCodeFence strips markdown code fencing some models wrap JSON in.
var reCodeFence = regexp.MustCompile("```json\\s*|\\s*```")

// nutritionReply is the JSON object the prompt asks for.
type nutritionReply struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
}

// EstimateNutrition asks the model for calories and protein for one item.
// Callers must treat every error as soft; the ranker substitutes defaults.
func (c *Client) EstimateNutrition(ctx context.Context, req EstimateRequest) (*Nutrition, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEstimatorFailure, "estimator request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEstimatorFailure, "failed to read estimator response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEstimatorFailure, "failed to parse estimator response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeEstimatorFailure, "estimator returned no choices", nil)
	}

	raw := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	raw = strings.TrimSpace(reCodeFence.ReplaceAllString(raw, ""))

	var reply nutritionReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEstimatorFailure, "estimator returned malformed JSON", err)
	}

	nutrition := &Nutrition{
		Calories:     int(reply.Calories),
		ProteinGrams: reply.Protein,
	}
	slog.Info("estimated nutrition",
		"item", req.ItemName,
		"restaurant", req.Restaurant,
		"calories", nutrition.Calories,
		"protein_grams", nutrition.ProteinGrams)
	return nutrition, nil
}

// buildPrompt composes the estimation prompt from the item's fields.
func buildPrompt(req EstimateRequest) string {
	description := req.Description
	if description == "" {
		description = "No additional description"
	}
	portion := req.PortionSize
	if portion == "" {
		portion = "Standard"
	}

	return fmt.Sprintf(`Estimate the nutritional content of this fast food item/deal:

Item: %s
Restaurant: %s
Description: %s
Portion Size: %s

Based on typical %s items and the description, estimate:
1. Total calories (all items combined if it's a meal/combo)
2. Total protein in grams (all items combined)

Be realistic based on actual fast food nutrition data.

Return ONLY a JSON object with this exact format:
{"calories": <number>, "protein": <number>}

Example responses:
{"calories": 1200, "protein": 45}
{"calories": 650, "protein": 28}`,
		req.ItemName, req.Restaurant, description, portion, req.Restaurant)
}

// classifyError maps HTTP status codes to estimator error codes.
func classifyError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "estimator API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeEstimatorAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeEstimatorRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeEstimatorFailure, fmt.Sprintf("estimator API returned %d: %s", statusCode, msg), nil)
	}
}
