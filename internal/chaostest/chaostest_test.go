package chaostest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/faultline/internal/chaostest"
	"github.com/seantiz/faultline/internal/demoapp"
	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/scenario"
)

func registry() *entrypoint.Registry {
	reg := entrypoint.NewRegistry()
	demoapp.Register(reg, nil)
	return reg
}

func TestChaosFiles(t *testing.T) {
	chaostest.RunDir(t, registry(), "testdata")
}

func TestCheckMessages(t *testing.T) {
	app := demoapp.New(nil)
	sc, err := scenario.New(app.Factory, []scenario.ActDescriptor{
		{Faults: map[string][]scenario.FaultSpec{demoapp.GetData: {{Type: "KeyError"}}}},
		{Faults: map[string][]scenario.FaultSpec{demoapp.GetData: {{Type: "OSError"}}}},
		{},
	}, demoapp.ProcessData, scenario.WithTable(app.Table()), scenario.WithCatalog(faults.NewCatalog()))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, chaostest.Check(ctx, sc, "act-0"))

	err = chaostest.Check(ctx, sc, "act-1")
	assert.ErrorIs(t, err, chaostest.ErrActFailed)
	assert.Contains(t, err.Error(), scenario.MessageNotCompleted)

	err = chaostest.Check(ctx, sc, "act-2")
	assert.ErrorIs(t, err, chaostest.ErrActFailed)
	assert.Contains(t, err.Error(), scenario.MessageNotReached)

	err = chaostest.Check(ctx, sc, "act-9")
	assert.True(t, errors.Is(err, scenario.ErrUnknownAct))
}
