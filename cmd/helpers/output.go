package helpers

import (
	"context"
	"io"
	"log/slog"

	"github.com/zinc-sig/easysweep/internal/output"
	"github.com/zinc-sig/easysweep/internal/webhook"
)

// OutputJSONAndWebhook sends the summary to the webhook, if any, and then
// prints it. A webhook failure is recorded on the summary, not returned.
func OutputJSONAndWebhook(ctx context.Context, w io.Writer, s *output.Summary, client *webhook.Client, logger *slog.Logger) error {
	if client != nil {
		if err := client.Send(ctx, s.Payload()); err != nil {
			logger.Warn("webhook failed", "sweep", s.SweepID, "error", err)
			s.WebhookSent = false
			s.WebhookError = err.Error()
		} else {
			s.WebhookSent = true
		}
	}

	return output.Write(w, s)
}
