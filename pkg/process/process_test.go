package process

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, IsProcessAlive(os.Getpid()))
	assert.False(t, IsProcessAlive(0))
	assert.False(t, IsProcessAlive(-1))
}

func TestTerminateInvalidPID(t *testing.T) {
	assert.ErrorIs(t, Terminate(0), os.ErrProcessDone)
}
