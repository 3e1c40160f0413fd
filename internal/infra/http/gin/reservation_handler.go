package ginserver

import (
	"errors"
	"io"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
)

// ReservationHandler covers the post-booking lifecycle: cancellation,
// check-in, check-out, no-show, refunds, and the guest/owner listing
// queries. Authorization beyond role checks lives in the application
// handlers, which know who owns what.
type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.CancelCommand{
		ReservationID: c.Param("id"),
		Actor:         user.actor(),
		Reason:        req.Reason,
	}
	result, err := commands.Dispatch[bookingapp.CancelCommand, *bookingapp.CancelResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) CheckIn(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := bookingapp.CheckInCommand{ReservationID: c.Param("id"), Actor: user.actor()}
	result, err := commands.Dispatch[bookingapp.CheckInCommand, *bookingapp.LifecycleResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) CheckOut(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := bookingapp.CheckOutCommand{ReservationID: c.Param("id"), Actor: user.actor()}
	result, err := commands.Dispatch[bookingapp.CheckOutCommand, *bookingapp.LifecycleResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) NoShow(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := bookingapp.NoShowCommand{ReservationID: c.Param("id"), Actor: user.actor()}
	result, err := commands.Dispatch[bookingapp.NoShowCommand, *bookingapp.LifecycleResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (h ReservationHandler) Refund(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.RefundCommand{
		AttemptID:   c.Param("attemptId"),
		Actor:       user.actor(),
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
	}
	result, err := commands.Dispatch[bookingapp.RefundCommand, *bookingapp.RefundResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) MyReservations(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.GuestReservationsQuery{GuestID: user.ID}
	views, err := queries.Ask[bookingapp.GuestReservationsQuery, []bookingapp.ReservationView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": views})
}

func (h ReservationHandler) PropertyReservations(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.PropertyReservationsQuery{PropertyID: c.Param("id"), Actor: user.actor()}
	views, err := queries.Ask[bookingapp.PropertyReservationsQuery, []bookingapp.ReservationView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": views})
}

var _ ReservationHTTP = ReservationHandler{}
