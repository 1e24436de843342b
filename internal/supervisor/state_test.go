package supervisor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternlight/devmux/internal/proc"
)

func keyOf(dir, name string) proc.Key {
	return proc.Key{ProjectDir: dir, Name: name}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "crashed", StateCrashed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(StateCrashed)
	require.NoError(t, err)
	assert.Equal(t, `"crashed"`, string(b))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`"running"`), &s))
	assert.Equal(t, StateRunning, s)

	require.Error(t, json.Unmarshal([]byte(`"zombie"`), &s))
}

func TestStatusBusOrderAndCancel(t *testing.T) {
	b := newStatusBus()
	ch, cancel := b.subscribe()

	for i := 0; i < 50; i++ {
		b.publish(StatusEvent{Key: keyOf("/p", "web"), Status: State(i % 3)})
	}
	for i := 0; i < 50; i++ {
		ev := <-ch
		assert.Equal(t, State(i%3), ev.Status)
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}
