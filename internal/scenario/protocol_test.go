package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/model"
)

func TestChannelSendAfterClose(t *testing.T) {
	ch := newChannel()
	assert.True(t, ch.empty())
	assert.True(t, ch.send(Message{Command: CommandAdvance}))
	assert.False(t, ch.empty())

	ch.close()
	ch.close()
	assert.False(t, ch.send(Message{Command: CommandAdvance}))
}

func TestChannelCloseUnblocksFullProducer(t *testing.T) {
	ch := newChannel()
	for i := 0; i < channelSize; i++ {
		require.True(t, ch.send(Message{Command: CommandFaultRaised}))
	}

	result := make(chan bool, 1)
	go func() { result <- ch.send(Message{Command: CommandFaultRaised}) }()

	select {
	case <-result:
		t.Fatal("send on a full channel returned early")
	case <-time.After(20 * time.Millisecond):
	}

	ch.close()
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not unblock producer")
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "ADVANCE", CommandAdvance.String())
	assert.Equal(t, "ADVANCE_ACK", CommandAdvanceAck.String())
	assert.Equal(t, "FAULT_RAISED", CommandFaultRaised.String())
	assert.Equal(t, "UNKNOWN", Command(0).String())
}

func testScenario(t *testing.T) (*Scenario, *intercept.Table) {
	t.Helper()
	tbl := intercept.NewTable()
	tbl.MustRegister("svc.read", func(context.Context, ...any) (any, error) { return nil, nil })
	tbl.MustRegister("svc.flush", func(context.Context, ...any) (any, error) { return nil, nil })

	sc, err := New(func() RunFunc { return func(context.Context) error { return nil } },
		[]ActDescriptor{
			{Faults: map[string][]FaultSpec{"svc.read": {{Type: "KeyError"}}}},
			{},
		}, "svc.flush", WithTable(tbl), WithCatalog(faults.NewCatalog()))
	require.NoError(t, err)
	return sc, tbl
}

func TestHandleUnknownOriginIsNoop(t *testing.T) {
	sc, _ := testScenario(t)

	done, err := sc.handle(Message{Command: CommandFaultRaised, Act: 0, Origin: "svc.elsewhere"}, newChannel())
	require.NoError(t, err)
	assert.False(t, done)
	assert.False(t, sc.acts[0].ObservedFaults()["svc.read"])

	done, err = sc.handle(Message{Command: CommandFaultRaised, Act: 9, Origin: "svc.read"}, newChannel())
	require.NoError(t, err)
	assert.False(t, done)
}

func TestHandleAdvanceSwapsActs(t *testing.T) {
	sc, tbl := testScenario(t)
	ch := newChannel()
	require.NoError(t, sc.acts[0].activate(tbl, ch))
	assert.True(t, tbl.Overridden("svc.read"))

	done, err := sc.handle(Message{Command: CommandFaultRaised, Act: 0, Origin: "svc.read"}, ch)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, sc.acts[0].ObservedFaults()["svc.read"])

	done, err = sc.handle(Message{Command: CommandAdvance, Act: 0}, ch)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, model.VerdictSuccess, sc.Verdicts()["act-0"])
	assert.False(t, tbl.Overridden("svc.read"))
	assert.True(t, tbl.Overridden("svc.flush"), "act-1 terminal checkpoint")
	assert.Equal(t, State{Phase: PhaseActActive, Act: 1}, sc.State())

	release := make(chan struct{})
	_, err = sc.handle(Message{Command: CommandAdvanceAck, Act: 0, release: release}, ch)
	require.NoError(t, err)
	select {
	case <-release:
	default:
		t.Fatal("ADVANCE_ACK did not release the worker")
	}

	// A repeated advance for an act already passed is ignored.
	done, err = sc.handle(Message{Command: CommandAdvance, Act: 0}, ch)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = sc.handle(Message{Command: CommandAdvance, Act: 1}, ch)
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, tbl.Overridden("svc.flush"))
}

func TestActivateRollsBackOnCollision(t *testing.T) {
	sc, tbl := testScenario(t)
	cs, err := tbl.Resolve("svc.flush")
	require.NoError(t, err)
	require.NoError(t, tbl.Install(cs, func(context.Context, ...any) (any, error) { return nil, nil }))

	err = sc.acts[0].activate(tbl, newChannel())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, err, intercept.ErrAlreadyInstalled)
	assert.False(t, tbl.Overridden("svc.read"), "partial install must be rolled back")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not-started", State{}.String())
	assert.Equal(t, "act-active(2)", State{Phase: PhaseActActive, Act: 2}.String())
	assert.Equal(t, "completed", State{Phase: PhaseCompleted}.String())
	assert.Equal(t, "failed(0)", State{Phase: PhaseFailed}.String())
}

func TestVerdictMessage(t *testing.T) {
	assert.Equal(t, MessageNotCompleted, VerdictMessage(model.VerdictFailure))
	assert.Equal(t, MessageNotReached, VerdictMessage(model.VerdictUndefined))
	assert.Empty(t, VerdictMessage(model.VerdictSuccess))
}
