package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdered_MatchesSpecSequence(t *testing.T) {
	assert.Equal(t, []ActivityName{ActivityTranscribe, ActivityChunk, ActivityEmbed}, Ordered)
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, 0, indexOf(ActivityTranscribe))
	assert.Equal(t, 2, indexOf(ActivityEmbed))
	assert.Equal(t, -1, indexOf(ActivityName("bogus")))
}

func TestDefaultPolicies_CoversEveryActivity(t *testing.T) {
	policies := DefaultPolicies()
	for _, name := range Ordered {
		p, ok := policies[name]
		require.True(t, ok, "no retry policy defined for activity %q", name)
		assert.Greater(t, p.MaxAttempts, 0)
		assert.Greater(t, p.StartToClose, p.Heartbeat)
		assert.Greater(t, p.MaxBackoff, p.InitialBackoff)
		assert.Equal(t, 2.0, p.BackoffCoeff)
	}
}

func TestFailure_Retriable(t *testing.T) {
	assert.True(t, NewTransientFailure(assertErr{}).Retriable())
	assert.False(t, NewPermanentFailure(assertErr{}).Retriable())
	assert.False(t, NewCancelledFailure().Retriable())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
