package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	"staybook/internal/infra/storage/memory"
)

type chargeCommand struct {
	Idem string
}

func (c chargeCommand) Key() string            { return "test.charge" }
func (c chargeCommand) IdempotencyKey() string { return c.Idem }
func (c chargeCommand) ResultPrototype() any   { return &chargeResult{} }

type chargeResult struct {
	ChargeID string `json:"charge_id"`
}

type chargeHandler struct {
	calls int
	fail  error
}

func (h *chargeHandler) Handle(ctx context.Context, cmd chargeCommand) (*chargeResult, error) {
	h.calls++
	if h.fail != nil {
		return nil, h.fail
	}
	return &chargeResult{ChargeID: "ch_1"}, nil
}

func newIdempotentBus(handler *chargeHandler) commands.Bus {
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, "test.charge", handler)
	return middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(), nil))
}

func TestIdempotencyReplaysRecordedResult(t *testing.T) {
	handler := &chargeHandler{}
	bus := newIdempotentBus(handler)
	ctx := context.Background()

	first, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Idem: "idem-1"})
	require.NoError(t, err)
	require.Equal(t, "ch_1", first.ChargeID)

	replay, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Idem: "idem-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ChargeID, replay.ChargeID)
	assert.Equal(t, 1, handler.calls, "the handler must not run twice for one key")

	_, err = commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Idem: "idem-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, handler.calls, "a fresh key executes normally")
}

func TestIdempotencyReplaysFailures(t *testing.T) {
	handler := &chargeHandler{fail: errors.New("card declined")}
	bus := newIdempotentBus(handler)
	ctx := context.Background()

	_, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Idem: "idem-1"})
	require.EqualError(t, err, "card declined")

	// The failure is recorded; clearing the fault must not change the
	// replayed outcome.
	handler.fail = nil
	_, err = commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Idem: "idem-1"})
	require.EqualError(t, err, "card declined")
	assert.Equal(t, 1, handler.calls)
}

func TestIdempotencySkipsEmptyKeys(t *testing.T) {
	handler := &chargeHandler{}
	bus := newIdempotentBus(handler)
	ctx := context.Background()

	for range 3 {
		_, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, handler.calls, "commands without a key bypass the cache")
}
