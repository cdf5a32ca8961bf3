package risk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryptoagents/src/bus"
	"cryptoagents/src/events"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(total, available, exposure, daily string) model.RiskSnapshot {
	return model.RiskSnapshot{
		TotalCapital:     d(total),
		AvailableCapital: d(available),
		TotalExposure:    d(exposure),
		DailyPnl:         d(daily),
	}
}

func TestCheckLimits(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		snap model.RiskSnapshot
		rule string
	}{
		{"healthy", snapshot("100", "100", "0", "0"), ""},
		{"daily loss breached", snapshot("100", "100", "0", "-6"), RejectDailyLoss},
		{"daily loss at limit", snapshot("100", "100", "0", "-5"), ""},
		{"capital too low", snapshot("100", "0.5", "0", "0"), RejectLowCapital},
		{"capital at floor", snapshot("100", "1", "0", "0"), ""},
		{"exposure too high", snapshot("100", "50", "81", "0"), RejectMaxExposure},
		{"exposure at cap", snapshot("100", "50", "80", "0"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckLimits(tt.snap, cfg)
			if tt.rule == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestConfig_Sanitize(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	cfg := Config{
		InitialCapital:       d("-1"),
		MaxPositionSize:      d("1.5"),
		MaxDailyLoss:         d("0.03"),
		StopLossPercentage:   decimal.Zero,
		TakeProfitPercentage: d("0.1"),
		MaxExposureRatio:     d("0.8"),
		MinCapitalRatio:      d("0.1"),
	}.Sanitize()

	def := DefaultConfig()
	require.True(t, cfg.InitialCapital.Equal(def.InitialCapital))
	require.True(t, cfg.MaxPositionSize.Equal(def.MaxPositionSize))
	require.True(t, cfg.MaxDailyLoss.Equal(d("0.03")))
	require.True(t, cfg.StopLossPercentage.Equal(def.StopLossPercentage))
	require.True(t, cfg.TakeProfitPercentage.Equal(d("0.1")))
	require.Equal(t, def.SweepInterval, cfg.SweepInterval)

	var keys []interface{}
	for _, entry := range hook.AllEntries() {
		if entry.Message == "invalid risk setting, using default" {
			require.Equal(t, logrus.WarnLevel, entry.Level)
			keys = append(keys, entry.Data["key"])
		}
	}
	require.Equal(t, []interface{}{"INITIAL_CAPITAL", "MAX_POSITION_SIZE", "STOP_LOSS_PERCENTAGE"}, keys)
}

type fakeSnapshots struct {
	snap *model.RiskSnapshot
	err  error
}

func (f *fakeSnapshots) Latest(context.Context) (*model.RiskSnapshot, error) { return f.snap, f.err }

type fakePositions struct {
	open []model.Position
}

func (f *fakePositions) ListOpen(context.Context) ([]model.Position, error) { return f.open, nil }

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	sent     []model.Signal
}

func (f *fakePublisher) Publish(_ context.Context, channel string, s model.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func buySignal() model.Signal {
	return model.NewSignal("BTC/USDT", model.SideBuy, d("100"), d("70"), "swing")
}

func TestValidator_ApprovesWithoutSnapshot(t *testing.T) {
	pub := &fakePublisher{}
	v := NewValidator(DefaultConfig(), &fakeSnapshots{}, &fakePositions{}, pub)

	ok, err := v.HandleSignal(context.Background(), buySignal())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{bus.ChannelApproved}, pub.channels)
	require.Equal(t, "swing", pub.sent[0].Strategy)
}

func TestValidator_RejectsOnDailyLoss(t *testing.T) {
	snap := snapshot("100", "100", "0", "-6")
	pub := &fakePublisher{}
	hub := events.NewHub("risk")
	stream, cancel := hub.Subscribe(4)
	defer cancel()

	v := NewValidator(DefaultConfig(), &fakeSnapshots{snap: &snap}, &fakePositions{}, pub, WithEvents(hub))

	ok, err := v.HandleSignal(context.Background(), buySignal())
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, pub.sent)

	select {
	case ev := <-stream:
		require.Equal(t, events.KindSignalRejected, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a rejection event")
	}
}

func TestValidator_CloseBypassesLimits(t *testing.T) {
	snap := snapshot("100", "0", "100", "-50")
	pub := &fakePublisher{}
	v := NewValidator(DefaultConfig(), &fakeSnapshots{snap: &snap}, &fakePositions{}, pub)

	p := model.Position{ID: 7, Symbol: "BTC/USDT", EntryPrice: d("100"), CurrentPrice: d("90")}
	ok, err := v.HandleSignal(context.Background(), model.NewCloseSignal(p, "manual"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, pub.sent, 1)
}

func TestValidator_SnapshotErrorIsReturned(t *testing.T) {
	v := NewValidator(DefaultConfig(), &fakeSnapshots{err: errors.New("db down")}, &fakePositions{}, &fakePublisher{})

	_, err := v.HandleSignal(context.Background(), buySignal())
	require.Error(t, err)
}

func TestValidator_SweepEmitsOneClosePerBreach(t *testing.T) {
	positions := &fakePositions{open: []model.Position{
		{ID: 1, Symbol: "BTC/USDT", EntryPrice: d("100"), CurrentPrice: d("97"), Amount: d("1"), Status: model.PositionStatusOpen},
		{ID: 2, Symbol: "ETH/USDT", EntryPrice: d("100"), CurrentPrice: d("101"), Amount: d("1"), Status: model.PositionStatusOpen},
		{ID: 3, Symbol: "SOL/USDT", EntryPrice: d("100"), CurrentPrice: d("106"), Amount: d("1"), Status: model.PositionStatusOpen},
	}}
	pub := &fakePublisher{}
	notes := &fakeNotifier{}
	v := NewValidator(DefaultConfig(), &fakeSnapshots{}, positions, pub, WithNotifier(notes))

	sent, err := v.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, sent, 2)

	require.Equal(t, model.SideClose, sent[0].Side)
	require.Equal(t, "stop_loss", sent[0].Reason)
	require.Equal(t, model.PriorityHigh, sent[0].Priority)
	require.Equal(t, uint(1), *sent[0].PositionID)
	require.Equal(t, "take_profit", sent[1].Reason)
	require.Equal(t, uint(3), *sent[1].PositionID)

	require.Equal(t, []string{bus.ChannelApproved, bus.ChannelApproved}, pub.channels)
	require.Len(t, notes.texts, 1)
	require.Contains(t, notes.texts[0], "BTC/USDT")
	require.Contains(t, notes.texts[0], "-3.00%")
}

func TestValidator_ListenProcessesUntilCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 10 * time.Millisecond

	positions := &fakePositions{open: []model.Position{
		{ID: 1, Symbol: "BTC/USDT", EntryPrice: d("100"), CurrentPrice: d("97"), Amount: d("1")},
	}}
	pub := &fakePublisher{}
	v := NewValidator(cfg, &fakeSnapshots{}, positions, pub)

	in := make(chan model.Signal, 1)
	in <- buySignal()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Listen(ctx, in) }()

	require.Eventually(t, func() bool { return pub.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestValidator_ListenReportsClosedSubscription(t *testing.T) {
	v := NewValidator(DefaultConfig(), &fakeSnapshots{}, &fakePositions{}, &fakePublisher{})

	in := make(chan model.Signal)
	close(in)
	require.ErrorIs(t, v.Listen(context.Background(), in), bus.ErrSubscriptionClosed)
}
