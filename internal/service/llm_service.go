package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"finbot/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LLMService talks to the GigaChat REST API directly. It implements
// ChatProvider, Embedder and FileUploader.
type LLMService struct {
	config     *config.GigaChatConfig
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	authURL    string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewLLMService does not contact the API; the access token is fetched on
// first use.
func NewLLMService(cfg *config.GigaChatConfig, logger *zap.Logger) *LLMService {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	return &LLMService{
		config:     cfg,
		logger:     logger,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authURL:    cfg.AuthURL,
		now:        time.Now,
	}
}

// token returns a cached access token, refreshing it a minute before expiry.
func (s *LLMService) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.accessToken, nil
	}

	rqUID := uuid.New().String()
	form := url.Values{}
	form.Set("scope", s.config.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", rqUID)
	// the key is already Base64-encoded client credentials
	req.Header.Set("Authorization", "Basic "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("OAuth request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)),
			zap.String("rq_uid", rqUID),
		)
		return "", fmt.Errorf("OAuth failed with status %d", resp.StatusCode)
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix millis
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in OAuth response")
	}

	expiry := s.now().Add(30 * time.Minute)
	switch {
	case oauthResp.ExpiresAt > 0:
		expiry = time.UnixMilli(oauthResp.ExpiresAt)
	case oauthResp.ExpiresIn > 0:
		expiry = s.now().Add(time.Duration(oauthResp.ExpiresIn) * time.Second)
	}
	s.accessToken = oauthResp.AccessToken
	s.tokenExpiry = expiry

	s.logger.Info("Access token obtained", zap.Time("expires_at", expiry))
	return s.accessToken, nil
}

func (s *LLMService) invalidateToken() {
	s.mu.Lock()
	s.accessToken = ""
	s.mu.Unlock()
}

// do sends an authorized request built by newReq, retrying once with a
// fresh token on 401. newReq is called per attempt so bodies can be rebuilt.
func (s *LLMService) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.token(ctx)
		if err != nil {
			return nil, err
		}
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			s.invalidateToken()
			continue
		}
		return resp, nil
	}
}

func (s *LLMService) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

type gigaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type gigaMessage struct {
	Role             string            `json:"role"`
	Content          string            `json:"content"`
	Name             string            `json:"name,omitempty"`
	FunctionCall     *gigaFunctionCall `json:"function_call,omitempty"`
	FunctionsStateID string            `json:"functions_state_id,omitempty"`
	Attachments      []string          `json:"attachments,omitempty"`
}

type gigaChatRequest struct {
	Model        string           `json:"model"`
	Messages     []gigaMessage    `json:"messages"`
	Functions    []ToolDefinition `json:"functions,omitempty"`
	FunctionCall string           `json:"function_call,omitempty"`
	Temperature  float64          `json:"temperature,omitempty"`
	Stream       bool             `json:"stream"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message      gigaMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// Chat maps the generic request onto /chat/completions. GigaChat calls tools
// "functions" and returns at most one call per response.
func (s *LLMService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	payload := gigaChatRequest{
		Model:       req.Model,
		Messages:    toGigaMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		payload.Functions = req.Tools
		payload.FunctionCall = "auto"
	}

	var resp gigaChatResponse
	if err := s.postJSON(ctx, "/chat/completions", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Model:        resp.Model,
	}
	if fc := choice.Message.FunctionCall; fc != nil && fc.Name != "" {
		id := choice.Message.FunctionsStateID
		if id == "" {
			id = uuid.New().String()
		}
		out.ToolCalls = []ToolCall{{ID: id, Name: fc.Name, Arguments: fc.Arguments}}
	}

	s.logger.Debug("Chat completion finished",
		zap.String("model", resp.Model),
		zap.String("finish_reason", choice.FinishReason),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}

func toGigaMessages(msgs []ChatMessage) []gigaMessage {
	out := make([]gigaMessage, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == ChatRoleTool:
			// function results must be JSON
			content, _ := json.Marshal(map[string]string{"result": m.Content})
			out = append(out, gigaMessage{Role: "function", Name: m.ToolName, Content: string(content)})
		case m.Role == ChatRoleAssistant && len(m.ToolCalls) > 0:
			call := m.ToolCalls[0]
			args := call.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			out = append(out, gigaMessage{
				Role:             string(ChatRoleAssistant),
				Content:          m.Content,
				FunctionCall:     &gigaFunctionCall{Name: call.Name, Arguments: args},
				FunctionsStateID: call.ID,
			})
		default:
			out = append(out, gigaMessage{
				Role:        string(m.Role),
				Content:     m.Content,
				Attachments: m.Attachments,
			})
		}
	}
	return out
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request, returned in input order.
func (s *LLMService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = cleanText(t)
	}

	var resp embeddingsResponse
	if err := s.postJSON(ctx, "/embeddings", map[string]interface{}{
		"model": s.config.EmbeddingModel,
		"input": input,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// UploadFile stores a file for use as a chat attachment (purpose "general").
func (s *LLMService) UploadFile(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	resp, err := s.do(ctx, func() (*http.Request, error) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		if err := writer.WriteField("purpose", "general"); err != nil {
			return nil, err
		}
		part, err := writer.CreatePart(map[string][]string{
			"Content-Type":        {mimeType},
			"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return "", fmt.Errorf("file too large (413)")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	s.logger.Info("File uploaded to GigaChat", zap.String("file_id", uploadResp.ID), zap.Int("bytes", len(data)))
	return uploadResp.ID, nil
}
