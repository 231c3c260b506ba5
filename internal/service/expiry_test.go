package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

func TestRunExpirySweeper_StopsOnCancel(t *testing.T) {
	svc, m := newTestFoodService(FoodServiceOptions{})
	swept := make(chan struct{}, 8)
	m.foods.On("ExpireCreatedBefore", mock.Anything, fixedNow.Add(-time.Hour), fixedNow).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunExpirySweeper(ctx, svc, time.Hour, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	<-swept
	<-swept
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRunExpirySweeper_DisabledReturnsImmediately(t *testing.T) {
	svc, m := newTestFoodService(FoodServiceOptions{})
	RunExpirySweeper(context.Background(), svc, 0, time.Second, slog.Default())
	m.foods.AssertNotCalled(t, "ExpireCreatedBefore", mock.Anything, mock.Anything, mock.Anything)
}
