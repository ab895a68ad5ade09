package dto

type TransactionResponse struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Description      string  `json:"description"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	OriginalAmount   string  `json:"original_amount"`
	OriginalCurrency string  `json:"original_currency"`
	ExchangeRate     string  `json:"exchange_rate"`
	Category         string  `json:"category"`
	Type             string  `json:"type"`
	Date             string  `json:"date"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Status           string  `json:"status"`
	IsValidated      bool    `json:"is_validated"`
	PromptVersion    string  `json:"prompt_version"`
	CreatedAt        string  `json:"created_at"`
}

type LearningSampleResponse struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	OriginalInput    string  `json:"original_input"`
	OriginalAIAnswer string  `json:"original_ai_answer"`
	UserCorrection   string  `json:"user_correction"`
	Confidence       float64 `json:"confidence"`
	CreatedAt        string  `json:"created_at"`
}
