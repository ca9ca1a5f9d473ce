package whitelist_test

//go:generate mockgen -source=whitelist.go -destination=mocks/mocks.go -package=mocks Client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"presale/internal/whitelist"
	"presale/internal/whitelist/mocks"
	"presale/pkg/platform/circuit"
)

const addr = "0x1111111111111111111111111111111111111111"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuarded_PassThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockClient(ctrl)
	g := whitelist.NewGuarded(next, time.Second, discardLogger())
	ctx := context.Background()

	next.EXPECT().AddToWhitelist(gomock.Any(), addr).Return("0xtx", nil)
	next.EXPECT().CheckBalance(gomock.Any(), addr).Return(big.NewInt(150), nil)
	next.EXPECT().CheckProRata(gomock.Any(), addr).Return(big.NewInt(3), nil)
	next.EXPECT().SetTokenAllotment(gomock.Any(), addr).Return("0xallot", nil)

	tx, err := g.AddToWhitelist(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "0xtx", tx)

	bal, err := g.CheckBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(150), bal.Int64())

	share, err := g.CheckProRata(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(3), share.Int64())

	tx, err = g.SetTokenAllotment(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "0xallot", tx)
}

func TestGuarded_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockClient(ctrl)
	g := whitelist.NewGuarded(next, 20*time.Millisecond, discardLogger())

	next.EXPECT().AddToWhitelist(gomock.Any(), addr).DoAndReturn(
		func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	_, err := g.AddToWhitelist(context.Background(), addr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuarded_CircuitBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockClient(ctrl)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	g := whitelist.NewGuarded(next, time.Second, discardLogger(),
		whitelist.WithBreaker(circuit.New("whitelist",
			circuit.WithFailureThreshold(2),
			circuit.WithSuccessThreshold(1),
		)),
		whitelist.WithCooldown(time.Minute),
		whitelist.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	rpcErr := errors.New("rpc unreachable")

	next.EXPECT().AddToWhitelist(gomock.Any(), addr).Return("", rpcErr).Times(2)
	for i := 0; i < 2; i++ {
		_, err := g.AddToWhitelist(ctx, addr)
		require.ErrorIs(t, err, rpcErr)
	}

	// Open: rejected without reaching the contract.
	_, err := g.AddToWhitelist(ctx, addr)
	require.ErrorIs(t, err, whitelist.ErrCircuitOpen)

	// After the cooldown one trial call goes through and closes the breaker.
	now = now.Add(2 * time.Minute)
	next.EXPECT().AddToWhitelist(gomock.Any(), addr).Return("0xtx", nil).Times(2)

	tx, err := g.AddToWhitelist(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "0xtx", tx)

	_, err = g.AddToWhitelist(ctx, addr)
	require.NoError(t, err)
}

func TestGuarded_InvalidAddressDoesNotTripBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockClient(ctrl)
	breaker := circuit.New("whitelist", circuit.WithFailureThreshold(2))
	g := whitelist.NewGuarded(next, time.Second, discardLogger(), whitelist.WithBreaker(breaker))
	ctx := context.Background()

	t.Run("malformed input is rejected before the contract", func(t *testing.T) {
		for _, bad := range []string{"garbage", "", "0x123", "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"} {
			_, err := g.AddToWhitelist(ctx, bad)
			require.ErrorIs(t, err, whitelist.ErrInvalidAddress)
			_, err = g.CheckBalance(ctx, bad)
			require.ErrorIs(t, err, whitelist.ErrInvalidAddress)
		}
		assert.False(t, breaker.IsOpen())
	})

	t.Run("adapter address rejections are not remote failures", func(t *testing.T) {
		rejected := fmt.Errorf("%w: %q", whitelist.ErrInvalidAddress, addr)
		next.EXPECT().SetTokenAllotment(gomock.Any(), addr).Return("", rejected).Times(3)
		for range 3 {
			_, err := g.SetTokenAllotment(ctx, addr)
			require.ErrorIs(t, err, whitelist.ErrInvalidAddress)
		}
		assert.False(t, breaker.IsOpen())
	})

	t.Run("valid calls still go through", func(t *testing.T) {
		next.EXPECT().AddToWhitelist(gomock.Any(), addr).Return("0xtx", nil)
		tx, err := g.AddToWhitelist(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, "0xtx", tx)
	})
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var c whitelist.Client = whitelist.Unavailable{}

	_, err := c.AddToWhitelist(ctx, addr)
	assert.ErrorIs(t, err, whitelist.ErrNotConfigured)
	_, err = c.CheckBalance(ctx, addr)
	assert.ErrorIs(t, err, whitelist.ErrNotConfigured)
	_, err = c.CheckProRata(ctx, addr)
	assert.ErrorIs(t, err, whitelist.ErrNotConfigured)
	_, err = c.SetTokenAllotment(ctx, addr)
	assert.ErrorIs(t, err, whitelist.ErrNotConfigured)
}
