package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staybook/internal/app/commands"
	checkoutapp "staybook/internal/app/handlers/checkout"
)

type CheckoutHandler struct {
	Commands commands.Bus
}

type createSessionRequest struct {
	PropertyID string    `json:"property_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Guests     int       `json:"guests"`
	SuccessURL string    `json:"success_url"`
	CancelURL  string    `json:"cancel_url"`
}

func (h CheckoutHandler) CreateSession(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := checkoutapp.CreateSessionCommand{
		CommandID:       generateCommandID(),
		PropertyID:      req.PropertyID,
		GuestID:         user.ID,
		GuestEmail:      user.Email,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[checkoutapp.CreateSessionCommand, *checkoutapp.CreateSessionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ CheckoutHTTP = CheckoutHandler{}
