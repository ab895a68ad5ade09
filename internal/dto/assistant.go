package dto

type ResponseType string

const (
	ResponseTypeAI    ResponseType = "ai_response"
	ResponseTypeMedia ResponseType = "media_response"
)

// AssistantResponse is what the pipeline hands back to the messaging layer.
// Cached entries store this shape verbatim.
type AssistantResponse struct {
	Type          ResponseType  `json:"type"`
	Content       string        `json:"content,omitempty"`
	Media         *MediaPayload `json:"media,omitempty"`
	PromptVersion string        `json:"prompt_version,omitempty"`
}

// MediaPayload is a binary reply; Data is base64 encoded.
type MediaPayload struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
	Caption  string `json:"caption,omitempty"`
}

func TextResponse(content string) *AssistantResponse {
	return &AssistantResponse{Type: ResponseTypeAI, Content: content}
}

func MediaResponse(media *MediaPayload) *AssistantResponse {
	return &AssistantResponse{Type: ResponseTypeMedia, Media: media}
}
