package num

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2HalfToEven(t *testing.T) {
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, 1.22, Round2(1.225))
	assert.Equal(t, -0.92, Round2(-0.915))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, 2.0, Round2(1.995))
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.10, Clip(0.02, 0.10, 0.95))
	assert.Equal(t, 0.95, Clip(1.4, 0.10, 0.95))
	assert.Equal(t, 0.5, Clip(0.5, 0.10, 0.95))
}
