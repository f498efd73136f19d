package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectPolicy_Delay(t *testing.T) {
	p := DefaultReconnectPolicy()

	want := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}

	for i, w := range want {
		require.Equal(t, w, p.Delay(i+1), "attempt %d", i+1)
	}

	require.Equal(t, 8*time.Second, p.Delay(200), "large attempts must not overflow")
	require.Zero(t, p.Delay(0))
}

func TestReconnectPolicy_IsZero(t *testing.T) {
	require.True(t, ReconnectPolicy{}.IsZero())
	require.False(t, DefaultReconnectPolicy().IsZero())
}

func TestOptions_WithDefaults(t *testing.T) {
	t.Run("nil options", func(t *testing.T) {
		var o *Options

		got := o.WithDefaults()
		require.NotNil(t, got.Logger)
		require.NotNil(t, got.HTTPClient)
		require.Equal(t, DefaultEndpoint, got.Endpoint)
		require.Equal(t, DefaultOutputBufferSize, got.OutputBufferSize)
		require.Equal(t, DefaultControlBufferSize, got.ControlBufferSize)
		require.Equal(t, DefaultReconnectPolicy(), got.Reconnect)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		o := &Options{
			Endpoint:         "http://localhost:9000",
			OutputBufferSize: 4,
			Reconnect:        ReconnectPolicy{MaxAttempts: 1},
		}

		got := o.WithDefaults()
		require.Equal(t, "http://localhost:9000", got.Endpoint)
		require.Equal(t, 4, got.OutputBufferSize)
		require.Equal(t, 1, got.Reconnect.MaxAttempts)
		require.Empty(t, o.UserAgent, "WithDefaults must not mutate the receiver")
	})
}

func TestRunOptions(t *testing.T) {
	opts := NewRunOptions("ls -la")
	require.Equal(t, "ls -la", opts.Command)
	require.Equal(t, int64(60), opts.TimeoutSeconds())
	require.Equal(t, DefaultShell, opts.Shell)

	opts.Timeout = 1500 * time.Millisecond
	require.Equal(t, int64(2), opts.TimeoutSeconds())

	opts.Env = map[string]string{"A": "1"}
	clone := opts.Clone()
	opts.Env["A"] = "2"
	require.Equal(t, "1", clone.Env["A"])
}
