package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"finbot/internal/dto"
	"finbot/pkg/config"
	"finbot/pkg/logger"

	"go.uber.org/zap"
)

const (
	maxTextLength  = 4096
	maxMediaLength = 25 << 20
)

// WhatsAppClient sends and downloads messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	graphURL      string
	phoneNumberID string
	token         string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewWhatsAppClient(cfg *config.WhatsAppConfig, logger *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		graphURL:      strings.TrimRight(cfg.GraphURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.Token,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	body = truncateRunes(body, maxTextLength)
	return c.send(ctx, to, map[string]interface{}{
		"type": "text",
		"text": map[string]interface{}{"body": body, "preview_url": false},
	})
}

// SendMedia uploads the payload and sends it as a document, or as an image
// when the MIME type is an image.
func (c *WhatsAppClient) SendMedia(ctx context.Context, to string, media *dto.MediaPayload) error {
	data, err := base64.StdEncoding.DecodeString(media.Data)
	if err != nil {
		return fmt.Errorf("invalid media payload: %w", err)
	}
	mediaID, err := c.upload(ctx, data, media.Filename, media.MimeType)
	if err != nil {
		return err
	}

	kind := "document"
	object := map[string]interface{}{"id": mediaID}
	if strings.HasPrefix(media.MimeType, "image/") {
		kind = "image"
	} else {
		object["filename"] = media.Filename
	}
	if media.Caption != "" {
		object["caption"] = media.Caption
	}
	return c.send(ctx, to, map[string]interface{}{"type": kind, kind: object})
}

func (c *WhatsAppClient) send(ctx context.Context, to string, message map[string]interface{}) error {
	message["messaging_product"] = "whatsapp"
	message["recipient_type"] = "individual"
	message["to"] = to

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL+"/"+c.phoneNumberID+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("WhatsApp message sent", logger.User(to), zap.Any("type", message["type"]))
	return nil
}

func (c *WhatsAppClient) upload(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", err
	}
	part, err := writer.CreatePart(map[string][]string{
		"Content-Type":        {mimeType},
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL+"/"+c.phoneNumberID+"/media", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return uploadResp.ID, nil
}

// DownloadMedia resolves a media id to its URL and fetches the bytes.
func (c *WhatsAppClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/"+mediaID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve media: %w", err)
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	err = json.NewDecoder(resp.Body).Decode(&meta)
	resp.Body.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode media metadata: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err = c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaLength+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > maxMediaLength {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaLength)
	}
	return data, meta.MimeType, nil
}

// do authorizes req and turns non-2xx responses into errors.
func (c *WhatsAppClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("graph API returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
