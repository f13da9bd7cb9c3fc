// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/gamestate"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/nuketrack"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// ============================================================================
// Fakes
// ============================================================================

type playCall struct {
	index        uint16
	interrupt    bool
	highPriority bool
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []playCall
	err   error
}

func (p *fakePlayer) PlayIndex(ctx context.Context, index uint16, interrupt, highPriority bool) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{index, interrupt, highPriority})
	return uint16(len(p.calls) - 1), p.err
}

func (p *fakePlayer) Calls() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playCall(nil), p.calls...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, ev *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func start(t *testing.T, opts Options) (*Controller, *indicator.Panel) {
	t.Helper()
	panel := indicator.NewPanel(zerolog.Nop())
	c, err := New(panel, opts, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, panel
}

func apply(t *testing.T, c *Controller, typ events.Type, data map[string]interface{}) error {
	t.Helper()
	return c.Apply(context.Background(), &events.Event{Type: typ, Data: data})
}

func unit(id float64) map[string]interface{} {
	return map[string]interface{}{"unitId": id}
}

// flush waits until every request queued so far has been handled
func flush(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.call(context.Background(), request{}))
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestNew_RequiresPanel(t *testing.T) {
	_, err := New(nil, Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, result.ErrInvalidArgument)
}

func TestNew_InitialSnapshot(t *testing.T) {
	c, err := New(indicator.NewPanel(zerolog.Nop()), Options{}, zerolog.Nop())
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, gamestate.Lobby, s.Phase)
	assert.Equal(t, events.Invalid, s.LastEvent)
	assert.Zero(t, s.Tracked)
}

func TestRun_OnlyOnce(t *testing.T) {
	c, _ := start(t, Options{})
	flush(t, c)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, result.ErrInvalidState)
}

func TestRun_StoppedRejectsRequests(t *testing.T) {
	c, err := New(indicator.NewPanel(zerolog.Nop()), Options{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ErrorIs(t, c.Submit(context.Background(), &events.Event{Type: events.Info}), ErrStopped)
	assert.ErrorIs(t, c.Reset(context.Background()), ErrStopped)
}

func TestSubmit_NilEvent(t *testing.T) {
	c, _ := start(t, Options{})
	assert.ErrorIs(t, c.Submit(context.Background(), nil), result.ErrInvalidArgument)
	assert.ErrorIs(t, c.Apply(context.Background(), nil), result.ErrInvalidArgument)
}

// ============================================================================
// Game flow
// ============================================================================

func TestGameStart(t *testing.T) {
	player := &fakePlayer{}
	c, panel := start(t, Options{Player: player, EventSounds: true})

	require.NoError(t, apply(t, c, events.GameStart, nil))

	s := c.Snapshot()
	assert.Equal(t, gamestate.InGame, s.Phase)
	assert.Equal(t, events.GameStart, s.LastEvent)
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertWarning))
	assert.Equal(t, []playCall{{index: events.SoundGameStart}}, player.Calls())
}

func TestGameStart_ClearsTrackedNukes(t *testing.T) {
	c, _ := start(t, Options{})

	require.NoError(t, apply(t, c, events.AlertAtom, unit(1)))
	require.NoError(t, apply(t, c, events.NukeLaunched, unit(2)))
	assert.Equal(t, 2, c.Snapshot().Tracked)

	require.NoError(t, apply(t, c, events.GameStart, nil))
	assert.Zero(t, c.Snapshot().Tracked)
}

func TestGameOver_ClearsAlerts(t *testing.T) {
	for _, typ := range []events.Type{events.GameEnd, events.Win, events.Lose} {
		t.Run(typ.String(), func(t *testing.T) {
			c, panel := start(t, Options{})
			require.NoError(t, apply(t, c, events.GameStart, nil))
			require.NoError(t, apply(t, c, events.AlertLand, nil))
			require.NoError(t, apply(t, c, events.NukeLaunched, nil))

			require.NoError(t, apply(t, c, typ, nil))

			snap := panel.Snapshot()
			assert.Equal(t, [indicator.AlertCount]indicator.Effect{}, snap.Alert)
			assert.Equal(t, indicator.Blink, snap.Nuke[0], "nuke LEDs are left to expire")
		})
	}

	c, _ := start(t, Options{})
	require.NoError(t, apply(t, c, events.Win, nil))
	assert.Equal(t, gamestate.Won, c.Snapshot().Phase)
}

func TestSubscribe(t *testing.T) {
	panel := indicator.NewPanel(zerolog.Nop())
	c, err := New(panel, Options{}, zerolog.Nop())
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []gamestate.Phase
	c.Subscribe(func(from, to gamestate.Phase) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.NoError(t, apply(t, c, events.GameStart, nil))
	require.NoError(t, apply(t, c, events.Lose, nil))
	require.NoError(t, c.Reset(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []gamestate.Phase{gamestate.InGame, gamestate.Lost, gamestate.Lobby}, seen)
}

// ============================================================================
// Nukes
// ============================================================================

func TestLaunch_BlinksNukeLED(t *testing.T) {
	tests := []struct {
		event events.Type
		typ   nuketrack.Type
	}{
		{events.NukeLaunched, nuketrack.Atom},
		{events.HydroLaunched, nuketrack.Hydro},
		{events.MIRVLaunched, nuketrack.MIRV},
	}

	for _, tt := range tests {
		t.Run(tt.event.String(), func(t *testing.T) {
			c, panel := start(t, Options{})
			require.NoError(t, apply(t, c, tt.event, unit(77)))

			s := c.Snapshot()
			assert.Equal(t, 1, s.Outgoing[tt.typ])
			assert.Equal(t, 1, s.Tracked)
			assert.Equal(t, indicator.Blink, panel.Effect(indicator.Nuke, int(tt.typ)))
		})
	}
}

func TestIncoming_LightsAlertAndWarning(t *testing.T) {
	c, panel := start(t, Options{})

	require.NoError(t, apply(t, c, events.AlertHydro, unit(5)))

	s := c.Snapshot()
	assert.Equal(t, 1, s.Incoming[nuketrack.Hydro])
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertHydro))
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertWarning))
}

func TestInvasionAlerts(t *testing.T) {
	c, panel := start(t, Options{})

	require.NoError(t, apply(t, c, events.AlertLand, nil))
	require.NoError(t, apply(t, c, events.AlertNaval, nil))

	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertLand))
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertNaval))
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertWarning))
	assert.Zero(t, c.Snapshot().Tracked)
}

func TestResolve_LEDOffWhenCountDropsToZero(t *testing.T) {
	c, panel := start(t, Options{})

	require.NoError(t, apply(t, c, events.AlertAtom, unit(1)))
	require.NoError(t, apply(t, c, events.AlertAtom, unit(2)))
	require.NoError(t, apply(t, c, events.NukeLaunched, unit(3)))

	require.NoError(t, apply(t, c, events.NukeExploded, unit(1)))
	assert.Equal(t, 1, c.Snapshot().Incoming[nuketrack.Atom])
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertAtom))
	assert.Equal(t, indicator.Blink, panel.Effect(indicator.Nuke, 0))

	require.NoError(t, apply(t, c, events.NukeIntercepted, unit(2)))
	assert.Zero(t, c.Snapshot().Incoming[nuketrack.Atom])
	assert.Equal(t, indicator.Off, panel.Effect(indicator.Alert, indicator.AlertAtom))
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertWarning))
	assert.Equal(t, indicator.Blink, panel.Effect(indicator.Nuke, 0))

	require.NoError(t, apply(t, c, events.NukeExploded, unit(3)))
	assert.Equal(t, indicator.Off, panel.Effect(indicator.Nuke, 0))
	assert.Zero(t, c.Snapshot().Tracked)
}

func TestResolve_UnknownUnit(t *testing.T) {
	c, panel := start(t, Options{})
	require.NoError(t, apply(t, c, events.AlertMIRV, nil))

	require.NoError(t, apply(t, c, events.NukeExploded, unit(999)))
	assert.Equal(t, indicator.Off, panel.Effect(indicator.Alert, indicator.AlertMIRV))
	assert.Zero(t, c.Snapshot().EventsFailed)
}

func TestRegistryFull_CountsFailure(t *testing.T) {
	c, _ := start(t, Options{})
	for i := 0; i < nuketrack.Capacity; i++ {
		require.NoError(t, apply(t, c, events.AlertAtom, unit(float64(i))))
	}

	err := apply(t, c, events.AlertAtom, unit(1000))
	assert.ErrorIs(t, err, result.ErrResourceExhausted)

	s := c.Snapshot()
	assert.Equal(t, nuketrack.Capacity, s.Tracked)
	assert.Equal(t, uint64(1), s.EventsFailed)
	assert.Equal(t, uint64(nuketrack.Capacity+1), s.EventsProcessed)
}

func TestTimedLEDsExpire(t *testing.T) {
	c, panel := start(t, Options{})
	flush(t, c)

	require.NoError(t, panel.SetTimed(indicator.Alert, indicator.AlertNaval, indicator.On, time.Millisecond))
	assert.Eventually(t, func() bool {
		return panel.Effect(indicator.Alert, indicator.AlertNaval) == indicator.Off
	}, time.Second, 10*time.Millisecond)
}

// ============================================================================
// Sounds and commands
// ============================================================================

func TestSoundPlay(t *testing.T) {
	player := &fakePlayer{}
	c, _ := start(t, Options{Player: player, EventSounds: true})

	data := map[string]interface{}{"soundIndex": 202.0, "interrupt": true, "priority": "high"}
	require.NoError(t, apply(t, c, events.SoundPlay, data))
	require.NoError(t, apply(t, c, events.SoundPlay, map[string]interface{}{"soundId": "game_defeat"}))

	assert.Equal(t, []playCall{{202, true, true}, {4, false, false}}, player.Calls())
}

func TestSoundPlay_Invalid(t *testing.T) {
	player := &fakePlayer{}
	c, _ := start(t, Options{Player: player})

	err := apply(t, c, events.SoundPlay, map[string]interface{}{"soundId": "kazoo"})
	assert.ErrorIs(t, err, result.ErrInvalidArgument)
	assert.Empty(t, player.Calls())
	assert.Equal(t, uint64(1), c.Snapshot().EventsFailed)
}

func TestEventSounds_Disabled(t *testing.T) {
	player := &fakePlayer{}
	c, _ := start(t, Options{Player: player})

	require.NoError(t, apply(t, c, events.GameStart, nil))
	require.NoError(t, apply(t, c, events.AlertAtom, nil))
	assert.Empty(t, player.Calls())
}

func TestPlayerError_StillAppliesEvent(t *testing.T) {
	player := &fakePlayer{err: errors.New("bus closed")}
	c, panel := start(t, Options{Player: player, EventSounds: true})

	err := apply(t, c, events.GameStart, nil)
	assert.Error(t, err)
	assert.Equal(t, gamestate.InGame, c.Snapshot().Phase)
	assert.Equal(t, indicator.On, panel.Effect(indicator.Alert, indicator.AlertWarning))
}

func TestHandleMessage_SendNuke(t *testing.T) {
	pub := &fakePublisher{}
	c, panel := start(t, Options{Publisher: pub})

	msg := events.Message{
		Kind:    events.KindCommand,
		Command: &events.Command{Action: ActionSendNuke, Params: map[string]interface{}{"nukeType": "mirv"}},
	}
	require.NoError(t, c.HandleMessage(context.Background(), msg))
	flush(t, c)

	assert.Equal(t, indicator.Blink, panel.Effect(indicator.Nuke, int(nuketrack.MIRV)))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.MIRVLaunched, pub.events[0].Type)
	nt, _ := events.GetString(pub.events[0].Data, "nukeType")
	assert.Equal(t, "mirv", nt)
}

func TestHandleCommand_Errors(t *testing.T) {
	c, _ := start(t, Options{})

	err := c.call(context.Background(), request{command: &events.Command{Action: ActionSendNuke}})
	assert.ErrorIs(t, err, result.ErrInvalidArgument)

	err = c.call(context.Background(), request{command: &events.Command{Action: "self-destruct"}})
	assert.ErrorIs(t, err, result.ErrNotFound)
}

func TestHandleMessage_EventAndHandshake(t *testing.T) {
	c, _ := start(t, Options{})

	require.NoError(t, c.HandleMessage(context.Background(), events.Message{Kind: events.KindHandshake}))
	require.NoError(t, c.HandleMessage(context.Background(), events.Message{
		Kind:  events.KindEvent,
		Event: &events.Event{Type: events.GameStart},
	}))
	flush(t, c)

	assert.Equal(t, gamestate.InGame, c.Snapshot().Phase)
	assert.Equal(t, uint64(1), c.Snapshot().EventsProcessed)
}

// ============================================================================
// Frames
// ============================================================================

func TestHandleFrame_Audio(t *testing.T) {
	c, _ := start(t, Options{})
	ctx := context.Background()

	require.NoError(t, c.HandleFrame(ctx, otscan.BuildSoundAck(otscan.SoundAck{OK: true, SoundIndex: 1, RequestID: 0})))
	require.NoError(t, c.HandleFrame(ctx, otscan.BuildSoundAck(otscan.SoundAck{
		SoundIndex: 9, Error: otscan.AudioErrInvalidIndex, RequestID: 1,
	})))
	require.NoError(t, c.HandleFrame(ctx, otscan.BuildSoundStatus(otscan.SoundStatus{
		State: otscan.StatusReady | otscan.StatusPlaying, CurrentSound: 1, Volume: 50, UptimeSec: 12,
	})))
	flush(t, c)

	a := c.Snapshot().Audio
	assert.Equal(t, uint64(2), a.Acks)
	assert.Equal(t, uint64(1), a.AckFailures)
	assert.Equal(t, otscan.AudioErrInvalidIndex, a.LastAck.Error)
	require.True(t, a.HasStatus)
	assert.True(t, a.Status.Playing())
	assert.Equal(t, uint16(1), a.Status.CurrentSound)
}

func TestHandleFrame_Announce(t *testing.T) {
	c, _ := start(t, Options{})
	ctx := context.Background()

	info := otscan.ModuleInfo{
		Type: otscan.ModuleTypeAudio, FirmwareMaj: 1, FirmwareMin: 0,
		Capabilities: otscan.ModuleCapStatus, BlockBase: otscan.AudioBlockBase, NodeID: 3,
	}
	require.NoError(t, c.HandleFrame(ctx, otscan.BuildModuleAnnounce(info)))
	info.FirmwareMin = 1
	require.NoError(t, c.HandleFrame(ctx, otscan.BuildModuleAnnounce(info)))
	flush(t, c)

	mods := c.Snapshot().Audio.Modules
	require.Len(t, mods, 1)
	assert.Equal(t, uint8(1), mods[0].FirmwareMin)
}

func TestHandleFrame_Malformed(t *testing.T) {
	c, _ := start(t, Options{})

	f := otscan.Frame{ID: otscan.IDSoundAck, Length: 2}
	err := c.call(context.Background(), request{frame: &f})
	assert.Error(t, err)

	other := otscan.Frame{ID: 0x123, Length: 0}
	assert.NoError(t, c.call(context.Background(), request{frame: &other}))
}

// ============================================================================
// Reset
// ============================================================================

func TestReset(t *testing.T) {
	c, panel := start(t, Options{})

	require.NoError(t, apply(t, c, events.GameStart, nil))
	require.NoError(t, apply(t, c, events.AlertAtom, unit(1)))
	require.NoError(t, apply(t, c, events.MIRVLaunched, unit(2)))

	require.NoError(t, c.Reset(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, gamestate.Lobby, s.Phase)
	assert.Zero(t, s.Tracked)
	assert.Equal(t, indicator.Snapshot{}, panel.Snapshot())
}
