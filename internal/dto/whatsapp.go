package dto

// WebhookPayload mirrors the WhatsApp Cloud API notification envelope.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WebhookMetadata   `json:"metadata"`
	Messages         []WhatsAppMessage `json:"messages"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppMessage struct {
	From      string         `json:"from"`
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Text      *TextBody      `json:"text,omitempty"`
	Image     *MediaObject   `json:"image,omitempty"`
	Document  *MediaObject   `json:"document,omitempty"`
	Audio     *MediaObject   `json:"audio,omitempty"`
	Button    *ButtonPayload `json:"button,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaObject struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type ButtonPayload struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Body returns the user-visible text of a message regardless of its type.
func (m WhatsAppMessage) Body() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Button != nil:
		return m.Button.Text
	case m.Image != nil:
		return m.Image.Caption
	case m.Document != nil:
		return m.Document.Caption
	}
	return ""
}

// Media returns the attachment descriptor, if any.
func (m WhatsAppMessage) Media() *MediaObject {
	switch {
	case m.Image != nil:
		return m.Image
	case m.Document != nil:
		return m.Document
	case m.Audio != nil:
		return m.Audio
	}
	return nil
}
