package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	boom := errors.New("exit status 3")

	cases := []struct {
		name          string
		exitErr       error
		stopRequested bool
		autoRestart   bool
		wantNext      State
		wantRestart   time.Duration
	}{
		{"clean exit", nil, false, false, StateStopped, 0},
		{"clean exit with autorestart", nil, false, true, StateStopped, 0},
		{"requested stop", boom, true, false, StateStopped, 0},
		{"requested stop overrides autorestart", boom, true, true, StateStopped, 0},
		{"crash without autorestart", boom, false, false, StateCrashed, 0},
		{"crash with autorestart", boom, false, true, StateCrashed, RestartDelay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.exitErr, tc.stopRequested, tc.autoRestart)
			assert.Equal(t, tc.wantNext, d.Next)
			assert.Equal(t, tc.wantRestart, d.RestartAfter)
		})
	}
}
