package cierrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawnErrorUnwraps(t *testing.T) {
	cause := errors.New("no such file")
	err := NewSpawnError([]string{"missing-binary"}, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "missing-binary")
}

func TestNotFoundErrorAs(t *testing.T) {
	err := NewNotFound("pipeline", "build")

	var nf *NotFound
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, "build", nf.Name)
}

func TestWorkspaceErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewWorkspaceError(cause)

	assert.ErrorIs(t, err, cause)
}
