package systray

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"markestedt/keyrecorder/session"
)

// Controller is the session surface the tray menu drives
type Controller interface {
	ToggleRecord(ctx context.Context, name string) error
	TogglePlay(ctx context.Context) error
	Select(ctx context.Context, name string) error
}

// recordSlot is one entry of the Recordings submenu. Items cannot be
// removed once added, so surplus slots are hidden and reused.
type recordSlot struct {
	item *systray.MenuItem
	name string
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	ctrl       Controller
	webURL     string
	recordsDir string
	iconData   []byte
	quit       chan struct{}

	mu          sync.Mutex
	mRecord     *systray.MenuItem
	mPlay       *systray.MenuItem
	mRecordings *systray.MenuItem
	slots       []*recordSlot
	status      session.Status
	records     []string
}

// NewSystrayManager creates a new systray manager. An empty webURL hides the
// web UI entry.
func NewSystrayManager(ctrl Controller, webURL, recordsDir string, iconData []byte) *SystrayManager {
	return &SystrayManager{
		ctrl:       ctrl,
		webURL:     webURL,
		recordsDir: recordsDir,
		iconData:   iconData,
		quit:       make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// UpdateStatus refreshes the tooltip, menu labels and recordings list. Safe
// to call before the tray is ready.
func (m *SystrayManager) UpdateStatus(status session.Status, records []string) {
	m.mu.Lock()
	m.status = status
	m.records = slices.Clone(records)
	m.mu.Unlock()
	m.refresh()
}

func (m *SystrayManager) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mRecord == nil {
		return
	}

	systray.SetTooltip(tooltip(m.status, len(m.records), time.Now()))

	record, play := menuLabels(m.status.State)
	m.mRecord.SetTitle(record)
	m.mPlay.SetTitle(play)

	if m.status.State == session.Playing {
		m.mRecord.Disable()
	} else {
		m.mRecord.Enable()
	}
	if m.status.State == session.Recording {
		m.mPlay.Disable()
	} else {
		m.mPlay.Enable()
	}

	for len(m.slots) < len(m.records) {
		slot := &recordSlot{item: m.mRecordings.AddSubMenuItem("", "Play this recording next")}
		m.slots = append(m.slots, slot)
		go m.watchSlot(slot)
	}
	for i, e := range recordEntries(m.records, m.status.Selected, len(m.slots)) {
		slot := m.slots[i]
		slot.name = e.name
		if e.name == "" {
			slot.item.Hide()
			continue
		}
		slot.item.SetTitle(e.name)
		slot.item.Show()
		if e.selected {
			slot.item.Check()
		} else {
			slot.item.Uncheck()
		}
	}
	if len(m.records) == 0 {
		m.mRecordings.Disable()
	} else {
		m.mRecordings.Enable()
	}
}

// watchSlot selects the slot's current recording when it is clicked
func (m *SystrayManager) watchSlot(slot *recordSlot) {
	for range slot.item.ClickedCh {
		m.mu.Lock()
		name := slot.name
		m.mu.Unlock()
		if name == "" {
			continue
		}
		if err := m.ctrl.Select(context.Background(), name); err != nil {
			slog.Error("Failed to select recording from tray", "name", name, "error", err)
		}
	}
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	// Set icon
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	systray.SetTitle("KeyRecorder")

	// Add menu items
	mRecord := systray.AddMenuItem("Record", "Start or stop recording")
	mPlay := systray.AddMenuItem("Play", "Start or stop playing the selected recording")
	mRecordings := systray.AddMenuItem("Recordings", "Choose the recording to play")
	systray.AddSeparator()
	mOpenFolder := systray.AddMenuItem("Open recordings folder", "Show saved recordings")
	mOpenWebUI := systray.AddMenuItem("Open Web UI", "Open the KeyRecorder web dashboard")
	if m.webURL == "" {
		mOpenWebUI.Hide()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit KeyRecorder")

	m.mu.Lock()
	m.mRecord = mRecord
	m.mPlay = mPlay
	m.mRecordings = mRecordings
	m.mu.Unlock()
	m.refresh()

	// Handle menu clicks
	go func() {
		for {
			select {
			case <-mRecord.ClickedCh:
				if err := m.ctrl.ToggleRecord(context.Background(), ""); err != nil {
					slog.Error("Failed to toggle recording from tray", "error", err)
				}
			case <-mPlay.ClickedCh:
				if err := m.ctrl.TogglePlay(context.Background()); err != nil {
					slog.Error("Failed to toggle playback from tray", "error", err)
				}
			case <-mOpenFolder.ClickedCh:
				slog.Info("Opening recordings folder", "path", m.recordsDir)
				openExternal(m.recordsDir)
			case <-mOpenWebUI.ClickedCh:
				slog.Info("Opening web UI", "url", m.webURL)
				openExternal(m.webURL)
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

func tooltip(status session.Status, records int, now time.Time) string {
	var b strings.Builder
	b.WriteString("KeyRecorder - ")

	switch status.State {
	case session.Recording:
		b.WriteString("recording")
	case session.Playing:
		fmt.Fprintf(&b, "playing %s", status.Active)
	default:
		b.WriteString("idle")
	}
	if status.State != session.Idle && !status.Since.IsZero() {
		fmt.Fprintf(&b, " for %s", strings.TrimSpace(humanize.RelTime(status.Since, now, "", "")))
	}

	fmt.Fprintf(&b, "\n%s", humanize.Plural(records, "recording", "recordings"))
	if status.Selected != "" {
		fmt.Fprintf(&b, ", %s selected", status.Selected)
	}
	return b.String()
}

type recordEntry struct {
	name     string
	selected bool
}

// recordEntries lays names out over n menu slots; slots past the end of
// names come back empty and are hidden.
func recordEntries(names []string, selected string, n int) []recordEntry {
	out := make([]recordEntry, max(n, len(names)))
	for i, name := range names {
		out[i] = recordEntry{name: name, selected: name == selected}
	}
	return out
}

func menuLabels(state session.State) (record, play string) {
	record, play = "Record", "Play"
	switch state {
	case session.Recording:
		record = "Stop recording"
	case session.Playing:
		play = "Stop playback"
	}
	return record, play
}

// openExternal opens a URL or folder with the desktop's default handler
func openExternal(target string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		if strings.HasPrefix(target, "http") {
			cmd = exec.Command("cmd", "/c", "start", target)
		} else {
			cmd = exec.Command("explorer", target)
		}
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	default:
		slog.Error("Unsupported platform for opening", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open", "target", target, "error", err)
	}
}
