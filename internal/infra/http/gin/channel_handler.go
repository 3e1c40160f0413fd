package ginserver

import (
	"encoding/json"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	channelapp "staybook/internal/app/handlers/channel"
	"staybook/internal/app/queries"
)

// ChannelHandler exposes the external-channel surface: single and bulk
// booking imports, channel-side sync, and the per-source revenue report.
// Every route requires the ADMIN role; channel connectors authenticate as
// machine accounts carrying it.
type ChannelHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type importBookingRequest struct {
	Source           string          `json:"source"`
	ExternalID       string          `json:"external_id"`
	ExternalPlatform string          `json:"external_platform"`
	PropertyID       string          `json:"property_id"`
	CheckIn          time.Time       `json:"check_in"`
	CheckOut         time.Time       `json:"check_out"`
	Guests           int             `json:"guests"`
	GuestEmail       string          `json:"guest_email"`
	GuestName        string          `json:"guest_name"`
	TotalCents       int64           `json:"total_cents"`
	Currency         string          `json:"currency"`
	CommissionRate   *float64        `json:"commission_rate"`
	RawPayload       json.RawMessage `json:"raw_payload"`
}

func (r importBookingRequest) toCommand(idempotencyKey string) channelapp.ImportCommand {
	return channelapp.ImportCommand{
		CommandID:        generateCommandID(),
		Source:           r.Source,
		ExternalID:       r.ExternalID,
		ExternalPlatform: r.ExternalPlatform,
		PropertyID:       r.PropertyID,
		CheckIn:          r.CheckIn,
		CheckOut:         r.CheckOut,
		Guests:           r.Guests,
		GuestEmail:       r.GuestEmail,
		GuestName:        r.GuestName,
		TotalCents:       r.TotalCents,
		Currency:         r.Currency,
		CommissionRate:   r.CommissionRate,
		RawPayload:       r.RawPayload,
		IdempotencyKeyV:  idempotencyKey,
	}
}

func (h ChannelHandler) ImportBooking(c *gin.Context) {
	if _, ok := requireRole(c, "ADMIN"); !ok {
		return
	}
	var req importBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := req.toCommand(c.GetHeader("Idempotency-Key"))
	result, err := commands.Dispatch[channelapp.ImportCommand, *channelapp.ImportResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type bulkImportRequest struct {
	Items []importBookingRequest `json:"items"`
}

func (h ChannelHandler) BulkImport(c *gin.Context) {
	if _, ok := requireRole(c, "ADMIN"); !ok {
		return
	}
	var req bulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := channelapp.BulkImportCommand{Items: make([]channelapp.ImportCommand, 0, len(req.Items))}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, item.toCommand(""))
	}
	result, err := commands.Dispatch[channelapp.BulkImportCommand, *channelapp.BulkImportResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	// 207 would overstate it; partial failures are itemized in the body.
	c.JSON(http.StatusOK, result)
}

type syncBookingRequest struct {
	CheckIn        *time.Time      `json:"check_in"`
	CheckOut       *time.Time      `json:"check_out"`
	Guests         *int            `json:"guests"`
	TotalCents     *int64          `json:"total_cents"`
	CommissionRate *float64        `json:"commission_rate"`
	RawPayload     json.RawMessage `json:"raw_payload"`
}

func (h ChannelHandler) SyncBooking(c *gin.Context) {
	if _, ok := requireRole(c, "ADMIN"); !ok {
		return
	}
	var req syncBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := channelapp.SyncCommand{
		ReservationID:  c.Param("id"),
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		Guests:         req.Guests,
		TotalCents:     req.TotalCents,
		CommissionRate: req.CommissionRate,
		RawPayload:     req.RawPayload,
	}
	result, err := commands.Dispatch[channelapp.SyncCommand, *channelapp.SyncResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChannelHandler) RevenueBySource(c *gin.Context) {
	if _, ok := requireRole(c, "ADMIN"); !ok {
		return
	}
	result, err := queries.Ask[channelapp.RevenueBySourceQuery, *channelapp.RevenueReport](c.Request.Context(), h.Queries, channelapp.RevenueBySourceQuery{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ChannelHTTP = ChannelHandler{}
