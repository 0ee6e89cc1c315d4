package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nguyenhaitrieu10/jobworker/internal/dto"
)

// Built-in handlers for the four stock job types. The bodies simulate the
// real side effects; swapping in actual email/payment integrations only
// changes the function bodies, not the registration surface.

// RegisterBuiltins registers the stock handlers on r.
func RegisterBuiltins(r *Registry, logger *slog.Logger) error {
	if err := Register(r, "send_email", Options{
		Timeout:    5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}, sendEmail(logger)); err != nil {
		return err
	}

	if err := Register(r, "process_payment", Options{
		Timeout:    10 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}, processPayment(logger)); err != nil {
		return err
	}

	if err := Register(r, "generate_report", Options{
		Timeout:    30 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}, generateReport(logger)); err != nil {
		return err
	}

	return Register(r, "cleanup_data", Options{
		Timeout:    5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}, cleanupData(logger))
}

func sendEmail(logger *slog.Logger) func(ctx context.Context, p dto.SendEmailPayload) (any, error) {
	return func(ctx context.Context, p dto.SendEmailPayload) (any, error) {
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		logger.Info("email sent", "to", p.To, "subject", p.Subject)

		return map[string]any{
			"status":     "sent",
			"recipient":  p.To,
			"message_id": fmt.Sprintf("msg_%d", time.Now().UnixNano()),
			"sent_at":    time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

func processPayment(logger *slog.Logger) func(ctx context.Context, p dto.ProcessPaymentPayload) (any, error) {
	return func(ctx context.Context, p dto.ProcessPaymentPayload) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		logger.Info("payment processed",
			"payment_id", p.PaymentID, "amount", p.Amount, "currency", p.Currency)

		return map[string]any{
			"status":         "processed",
			"payment_id":     p.PaymentID,
			"transaction_id": fmt.Sprintf("txn_%d", time.Now().UnixNano()),
			"processed_at":   time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

func generateReport(logger *slog.Logger) func(ctx context.Context, p dto.GenerateReportPayload) (any, error) {
	return func(ctx context.Context, p dto.GenerateReportPayload) (any, error) {
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		logger.Info("report generated", "report_type", p.ReportType, "format", p.OutputFormat)

		return map[string]any{
			"status":       "generated",
			"report_type":  p.ReportType,
			"file_path":    fmt.Sprintf("/reports/%d.%s", time.Now().UnixNano(), p.OutputFormat),
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

func cleanupData(logger *slog.Logger) func(ctx context.Context, p dto.CleanupDataPayload) (any, error) {
	return func(ctx context.Context, p dto.CleanupDataPayload) (any, error) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		logger.Info("data cleanup finished", "target", p.Target)

		return map[string]any{
			"status":     "cleaned",
			"target":     p.Target,
			"cleaned_at": time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}
