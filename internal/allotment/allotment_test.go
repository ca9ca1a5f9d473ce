package allotment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"presale/internal/allotment"
	"presale/internal/audit"
	"presale/internal/whitelist/mocks"
	dErrors "presale/pkg/domain-errors"
)

const holder = "0x3333333333333333333333333333333333333333"

func newService(t *testing.T) (*allotment.Service, *mocks.MockClient, *audit.MemoryPublisher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	pub := audit.NewMemoryPublisher()
	svc, err := allotment.New(client, "100", "https://etherscan.io/tx/",
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		allotment.WithAuditor(pub),
	)
	require.NoError(t, err)
	return svc, client, pub
}

func TestNew_InvalidMinimum(t *testing.T) {
	_, err := allotment.New(nil, "lots", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("balance below minimum is not eligible", func(t *testing.T) {
		svc, client, _ := newService(t)
		client.EXPECT().CheckBalance(gomock.Any(), holder).Return(big.NewInt(99), nil)

		res, err := svc.Register(ctx, holder)
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Empty(t, res.TxURL)
	})

	t.Run("eligible without share sends nothing", func(t *testing.T) {
		svc, client, _ := newService(t)
		client.EXPECT().CheckBalance(gomock.Any(), holder).Return(big.NewInt(100), nil)
		client.EXPECT().CheckProRata(gomock.Any(), holder).Return(big.NewInt(0), nil)

		res, err := svc.Register(ctx, holder)
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.Empty(t, res.TxHash)
	})

	t.Run("eligible with share sets the allotment", func(t *testing.T) {
		svc, client, pub := newService(t)
		gomock.InOrder(
			client.EXPECT().CheckBalance(gomock.Any(), holder).Return(big.NewInt(5000), nil),
			client.EXPECT().CheckProRata(gomock.Any(), holder).Return(big.NewInt(12), nil),
			client.EXPECT().SetTokenAllotment(gomock.Any(), holder).Return("0xabc", nil),
		)

		res, err := svc.Register(ctx, " "+holder+" ")
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.Equal(t, "https://etherscan.io/tx/0xabc", res.TxURL)

		events := pub.ByAction(audit.ActionAllotmentSet)
		require.Len(t, events, 1)
		assert.Equal(t, "12", events[0].Attributes["pro_rata"])
	})

	t.Run("client failure is reported as invalid input", func(t *testing.T) {
		svc, client, _ := newService(t)
		client.EXPECT().CheckBalance(gomock.Any(), "nope").Return(nil, errors.New("invalid address"))

		_, err := svc.Register(ctx, "nope")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("blank address", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Register(ctx, "   ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
