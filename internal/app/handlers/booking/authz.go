package booking

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domainreservation "staybook/internal/domain/reservation"
)

var ErrNotAllowed = errors.New("booking: actor lacks rights over this reservation")

// Actor identifies the authenticated caller of a booking command.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) hasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// authorize allows the reservation's guest, the property owner and admins.
// When ownerOnly is set the guest is excluded (refund, no-show).
func authorize(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation, actor Actor, ownerOnly bool) error {
	if actor.hasRole("ADMIN") {
		return nil
	}
	if !ownerOnly && actor.ID == res.GuestID {
		return nil
	}
	prop, err := unit.Properties().ByID(ctx, res.PropertyID)
	if err != nil {
		return err
	}
	if prop.OwnerID == actor.ID {
		return nil
	}
	return ErrNotAllowed
}
