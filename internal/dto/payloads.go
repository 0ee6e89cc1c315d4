package dto

import "encoding/json"

// Typed payloads for the built-in processors. The registry unmarshals the
// raw job payload into these before invoking the typed handler.

type SendEmailPayload struct {
	To       string          `json:"to" validate:"required,email"`
	Subject  string          `json:"subject" validate:"required"`
	Body     string          `json:"body"`
	Template string          `json:"template,omitempty"`
	Vars     json.RawMessage `json:"variables,omitempty"`
}

type ProcessPaymentPayload struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	Currency  string `json:"currency" validate:"required,len=3"`
	Method    string `json:"payment_method" validate:"required"`
}

type GenerateReportPayload struct {
	ReportType   string          `json:"report_type" validate:"required"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	OutputFormat string          `json:"output_format" validate:"required"`
}

type CleanupDataPayload struct {
	Target    string `json:"target" validate:"required"`
	OlderThan string `json:"older_than,omitempty"`
}
