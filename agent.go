package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"markestedt/keyrecorder/config"
	"markestedt/keyrecorder/platform"
	"markestedt/keyrecorder/player"
	"markestedt/keyrecorder/recorder"
	"markestedt/keyrecorder/session"
	"markestedt/keyrecorder/storage"
	"markestedt/keyrecorder/systray"
	"markestedt/keyrecorder/timing"
	"markestedt/keyrecorder/web"
)

// Agent coordinates hotkeys, raw mouse capture, the session machine and the
// user interfaces around it
type Agent struct {
	cfg      *config.Config
	hotkey   platform.Hotkey
	rawMouse platform.RawMouse
	store    *storage.RecordStore
	db       *storage.DB
	recorder *recorder.Recorder
	machine  *session.Machine
	web      *web.Server
	tray     *systray.SystrayManager
}

// NewAgent creates a new agent instance
func NewAgent(cfg *config.Config) (*Agent, error) {
	store, err := storage.NewRecordStore(cfg.RecordsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open recordings directory: %w", err)
	}

	// The journal is optional; everything else works without it
	db, err := storage.Open(config.DataDir())
	if err != nil {
		slog.Warn("Session history unavailable", "error", err)
		db = nil
	}

	keys := platform.NewKeyState()
	cursor := platform.NewCursor()
	timer := platform.TimerResolution{}

	rec := recorder.New(recorder.Config{
		Interval: cfg.Interval(),
		Exclude:  []string{cfg.Hotkeys.Record, cfg.Hotkeys.Play},
	}, keys, cursor, timing.SystemClock{}, timer)

	engine := player.New(player.Config{
		PositionStep: cfg.Playback.PositionStep,
		PositionTick: cfg.PositionTick(),
		LoopDelay:    cfg.LoopDelay(),
		MouseSpeed:   cfg.Playback.MouseSpeed,
		SortByTime:   cfg.Playback.SortByTime,
	}, player.Deps{
		Source:   store,
		Injector: platform.NewInjector(),
		Keys:     keys,
		Cursor:   cursor,
		Mouse:    platform.NewMouseSettings(),
		Timer:    timer,
	})

	a := &Agent{
		cfg:      cfg,
		hotkey:   platform.NewHotkey(),
		rawMouse: platform.NewRawMouse(),
		store:    store,
		db:       db,
		recorder: rec,
	}

	a.machine = session.New(rec, engine, store, session.Hooks{
		StateChanged:     func(session.State) { a.publishStatus() },
		Selected:         a.onSelected,
		RecordingSaved:   a.journal,
		PlaybackFinished: a.journal,
		Error:            a.onError,
	})

	if cfg.Web.Enabled {
		// Avoid storing a typed nil in the interface
		var journal web.Journal
		if db != nil {
			journal = db
		}
		a.web = web.NewServer(a.machine, journal, cfg.Web.Port)
	}

	return a, nil
}

// Machine returns the session machine that user interfaces drive
func (a *Agent) Machine() *session.Machine {
	return a.machine
}

// RecordsDir returns where recordings are saved
func (a *Agent) RecordsDir() string {
	return a.store.Dir()
}

// WebURL returns the dashboard address, or "" when it is disabled
func (a *Agent) WebURL() string {
	if a.web == nil {
		return ""
	}
	return a.web.URL()
}

// SetTray attaches the tray so it follows state changes. Call before Run.
func (a *Agent) SetTray(tray *systray.SystrayManager) {
	a.tray = tray
}

// Run starts the agent's main event loop
func (a *Agent) Run(ctx context.Context) error {
	machineDone := make(chan struct{})
	go func() {
		a.machine.Run(ctx)
		close(machineDone)
	}()
	defer func() {
		<-machineDone
		if a.db != nil {
			a.db.Close()
		}
	}()

	if name := a.cfg.Playback.LastSelected; name != "" {
		if err := a.machine.Select(ctx, name); err != nil {
			slog.Warn("Previously selected recording is gone", "name", name, "error", err)
		}
	}

	// Raw mouse capture lives for the whole run, not just while recording
	if err := a.rawMouse.Register(ctx, a.recorder.OnRawMouse); err != nil {
		slog.Error("Mouse movement will not be recorded", "error", err)
	}

	events, err := a.listenHotkeys(ctx)
	if err != nil {
		slog.Error("Hotkeys unavailable", "error", err)
	}

	if err := a.store.Watch(ctx, a.onRecordsChanged); err != nil {
		slog.Warn("Recordings directory will not be watched", "error", err)
	}

	if a.web != nil {
		go func() {
			if err := a.web.Start(ctx); err != nil {
				slog.Error("Web server failed", "error", err)
			}
		}()
	}

	a.publishStatus()

	slog.Info("KeyRecorder started",
		"record", a.cfg.Hotkeys.Record,
		"play", a.cfg.Hotkeys.Play,
		"records", a.store.Dir(),
	)

	// Main event loop
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			cmd := session.Command{Kind: session.CmdToggleRecord}
			if evt.Type == platform.HotkeyPlay {
				cmd.Kind = session.CmdTogglePlay
			}
			slog.Debug("Hotkey pressed", "hotkey", evt.Type.String())

			if err := a.machine.Submit(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Hotkey command failed", "hotkey", evt.Type.String(), "error", err)
			}
		}
	}
}

func (a *Agent) listenHotkeys(ctx context.Context) (<-chan platform.Event, error) {
	record, err := platform.VKCode(a.cfg.Hotkeys.Record)
	if err != nil {
		return nil, fmt.Errorf("failed to get VK code: %w", err)
	}
	play, err := platform.VKCode(a.cfg.Hotkeys.Play)
	if err != nil {
		return nil, fmt.Errorf("failed to get VK code: %w", err)
	}

	return a.hotkey.Listen(ctx, platform.Hotkeys{Record: record, Play: play})
}

func (a *Agent) publishStatus() {
	status := a.machine.Status()
	if a.web != nil {
		a.web.BroadcastStatus(status)
	}
	if a.tray != nil {
		names, err := a.store.List()
		if err != nil {
			slog.Warn("Failed to list recordings for tray", "error", err)
		}
		a.tray.UpdateStatus(status, names)
	}
}

func (a *Agent) onRecordsChanged() {
	if a.web != nil {
		a.web.BroadcastRecords()
	}
	a.publishStatus()
}

func (a *Agent) onSelected(name string) {
	a.cfg.Playback.LastSelected = name
	if err := config.Save(a.cfg); err != nil {
		slog.Warn("Failed to remember selection", "error", err)
	}
	a.onRecordsChanged()
}

func (a *Agent) onError(err error) {
	if errors.Is(err, player.ErrMissing) {
		// The selected file went away; let the lists catch up
		a.onRecordsChanged()
	}
	if a.web != nil {
		a.web.BroadcastError(err)
	}
}

// journal stores a finished session in the history database
func (a *Agent) journal(res session.Result) {
	entry := sessionEntry(res)
	slog.Info("Session finished",
		"kind", entry.Kind,
		"name", entry.LogName,
		"duration", res.Duration,
		"events", humanize.Comma(int64(entry.EventCount)),
		"success", entry.Success,
	)

	if a.db == nil {
		return
	}
	if err := a.db.SaveSession(&entry); err != nil {
		slog.Error("Failed to save session", "error", err)
		return
	}
	if a.web != nil {
		a.web.BroadcastSession(entry)
	}
}

func sessionEntry(res session.Result) storage.Session {
	entry := storage.Session{
		Kind:       storage.KindPlay,
		LogName:    res.Name,
		StartedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		EventCount: res.Events,
		Success:    res.Err == nil,
	}
	if res.Kind == session.Recording {
		entry.Kind = storage.KindRecord
	}
	if res.Err != nil {
		entry.ErrorMessage = res.Err.Error()
	}
	return entry
}
