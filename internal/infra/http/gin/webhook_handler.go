package ginserver

import (
	"encoding/json"
	"io"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	webhookapp "staybook/internal/app/handlers/webhook"
	"staybook/internal/infra/gateway"
)

const signatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps a delivery at 1 MiB; provider payloads are small.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Commands commands.Bus
	Secret   string
}

type webhookEnvelope struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data webhookData `json:"data"`
}

type webhookData struct {
	SessionID     string `json:"session_id"`
	IntentID      string `json:"payment_intent_id"`
	ChargeID      string `json:"charge_id"`
	ReservationID string `json:"reservation_id"`
	RefundCents   int64  `json:"amount_refunded_cents"`
	Currency      string `json:"currency"`
}

// Receive verifies the delivery signature against the raw body, then hands
// the event to the reconciler. Unknown event types are acknowledged with 200
// so the provider stops retrying them.
func (h WebhookHandler) Receive(c *gin.Context) {
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := gateway.VerifySignature(h.Secret, body, c.GetHeader(signatureHeader)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	if env.ID == "" || env.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id and type required"})
		return
	}
	cmd := webhookapp.ReconcileCommand{
		EventID:       env.ID,
		Kind:          webhookapp.EventKind(env.Type),
		SessionID:     env.Data.SessionID,
		IntentID:      env.Data.IntentID,
		ChargeID:      env.Data.ChargeID,
		ReservationID: env.Data.ReservationID,
		RefundCents:   env.Data.RefundCents,
		Currency:      env.Data.Currency,
	}
	result, err := commands.Dispatch[webhookapp.ReconcileCommand, *webhookapp.ReconcileResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ WebhookHTTP = WebhookHandler{}
