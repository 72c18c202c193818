package modem_test

import (
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/espgw/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Builds with dialer and options", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, err := modem.NewConfigBuilder().
			WithDialer(modem.NewMockDialer(ctrl)).
			WithATTimeout(time.Second).
			WithInitTimeout(2 * time.Second).
			WithResetDelay(10 * time.Millisecond).
			WithRingSize(64).
			WithDataHandler(func(conn, n int) {}, make([]byte, 16)).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})
}
