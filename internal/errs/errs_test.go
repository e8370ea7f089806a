package errs

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, SlotConflict, CodeOf(New(SlotConflict, "taken")))
	require.Equal(t, SlotConflict, CodeOf(fmt.Errorf("create: %w", New(SlotConflict, ""))))
	require.Equal(t, OrdersUnavailable, CodeOf(pkgerrors.Wrap(New(OrdersUnavailable, "x"), "route tx")))
	require.Equal(t, Code(""), CodeOf(errors.New("db down")))
	require.Equal(t, Code(""), CodeOf(nil))
}

func TestIs(t *testing.T) {
	require.True(t, Is(Newf(NotOwner, "series %d", 4), NotOwner))
	require.False(t, Is(New(NotOwner, ""), NotFound))
	require.False(t, Is(nil, NotFound))
}

func TestError_Message(t *testing.T) {
	require.Equal(t, "SLOT_CONFLICT", New(SlotConflict, "").Error())
	require.Equal(t, "INVALID_INTERVAL: 60 weeks", New(InvalidInterval, "60 weeks").Error())
}
