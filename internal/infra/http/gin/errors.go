package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "staybook/internal/app/handlers/booking"
	channelapp "staybook/internal/app/handlers/channel"
	checkoutapp "staybook/internal/app/handlers/checkout"
	"staybook/internal/app/policies"
	domaincalendar "staybook/internal/domain/calendar"
	domainchannel "staybook/internal/domain/channel"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	domainuser "staybook/internal/domain/user"
	"staybook/internal/infra/validate"
)

// respondError maps application and domain failures onto HTTP statuses.
// Conflicts (date clashes, duplicate imports, lost version races) are 409 so
// clients can distinguish them from bad input.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, validate.ErrValidation),
		errors.Is(err, domainrange.ErrInvalidRange),
		errors.Is(err, domainchannel.ErrUnknownSource),
		errors.Is(err, checkoutapp.ErrCheckInInPast),
		errors.Is(err, channelapp.ErrDatesClash),
		errors.Is(err, domainreservation.ErrNotExternal),
		errors.Is(err, domainreservation.ErrInvalidGuests),
		errors.Is(err, domainreservation.ErrExternalIDRequired):
		status = http.StatusBadRequest
	case errors.Is(err, bookingapp.ErrNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, domainreservation.ErrNotFound),
		errors.Is(err, domainproperty.ErrNotFound),
		errors.Is(err, domainuser.ErrNotFound),
		errors.Is(err, domainpayment.ErrAttemptNotFound):
		status = http.StatusNotFound
	case domainreservation.IsConflict(err),
		errors.Is(err, domaincalendar.ErrOverlappingRange):
		status = http.StatusConflict
	case errors.Is(err, domainreservation.ErrInvalidTransition),
		errors.Is(err, domainpayment.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domainpayment.ErrRefundTooLarge),
		errors.Is(err, domainreservation.ErrRefundExceedsCharge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, policies.ErrGatewayTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, policies.ErrGateway):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
