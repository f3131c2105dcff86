package scenario

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := configErr("act-1", "call site %q has %d fault bindings", "a.b", 2)
	assert.Equal(t, `E_CONFIGURATION: act-1: call site "a.b" has 2 fault bindings`, err.Error())

	cause := errors.New("boom")
	err = NewResolutionError("resolve entry point", cause)
	assert.Equal(t, "E_RESOLUTION: resolve entry point: boom", err.Error())
}

func TestErrorMatchesByKind(t *testing.T) {
	cause := errors.New("missing")
	err := fmt.Errorf("load: %w", resolutionErr("act-0", cause, "resolve %q", "x.y"))

	assert.ErrorIs(t, err, ErrResolution)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindResolution, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, KindInvariant, KindOf(invariantErr(nil, "broken")))
}
