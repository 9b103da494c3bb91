package console

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nwstad/overlayctl/internal/backup"
	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/editor"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/store"
)

// Screen represents the current active screen in the console
type Screen string

const (
	ScreenLoading Screen = "loading"
	ScreenList    Screen = "list"
	ScreenEdit    Screen = "edit"
	ScreenBackups Screen = "backups"
)

// Messages for async operations
type mountedMsg struct {
	entities []entity.Entity
	err      error
}

type refreshedMsg struct {
	entities []entity.Entity
	err      error
}

type mutationDoneMsg struct {
	err error
}

type editTickMsg time.Time

// WakeMsg is posted from outside the program when the device's event
// channel signals a session-visibility change; it triggers a store refresh.
type WakeMsg struct{}

// noticeBox carries one-shot messages from editor hooks (which fire on
// timer goroutines) into the model, which is copied by value on every
// update and so cannot be written from a hook directly.
type noticeBox struct {
	mu  sync.Mutex
	msg string
}

func (b *noticeBox) post(msg string) {
	b.mu.Lock()
	b.msg = msg
	b.mu.Unlock()
}

func (b *noticeBox) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := b.msg
	b.msg = ""
	return msg
}

// listKeyMap defines key bindings for the entity list screen
type listKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Edit    key.Binding
	Add     key.Binding
	Remove  key.Binding
	Save    key.Binding
	Backups key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Add, k.Remove, k.Save, k.Backups, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Edit, k.Add, k.Remove},
		{k.Save, k.Backups, k.Refresh, k.Quit},
	}
}

// Model is the top-level console model.
//
// The console mounts by probing both entity families and fetching their
// authoritative lists, then moves between the list, edit, and backups
// screens. Edits on the edit screen flow through a debounced edit buffer;
// the status badge in the panel reflects its state machine live.
type Model struct {
	// Device connection
	Client      *deviceapi.Client
	Widgets     *store.Store
	Overlays    *store.Store
	DeviceLabel string
	BackupDir   string

	// SortOrder orders the entity list: "identity" or "kind"
	SortOrder string

	// Current screen
	Screen Screen

	// Shared state
	Entities []entity.Entity
	Cursor   int
	Notice   string
	FatalErr error

	// Edit screen state
	Editor     *editor.Editor
	EditCursor int
	Editing    bool
	TextInput  textinput.Model

	// Backups screen state
	Backups     *backup.Store
	BackupKind  entity.Kind
	BackupsList []backup.Record
	BackupsCur  int

	// One-shot hook plumbing
	notices   *noticeBox
	transport *noticeBox

	// UI state
	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    listKeyMap
}

// New creates a console model for a connected device.
func New(client *deviceapi.Client, deviceLabel, backupDir string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	keys := listKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add text"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "backup"),
		),
		Backups: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "backups"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return Model{
		Client:      client,
		Widgets:     store.New(client, store.WidgetProfile()),
		Overlays:    store.New(client, store.OverlayProfile()),
		DeviceLabel: deviceLabel,
		BackupDir:   backupDir,
		Screen:      ScreenLoading,
		SortOrder:   "identity",
		Spinner:     s,
		TextInput:   ti,
		Help:        help.New(),
		Keys:        keys,
		notices:     &noticeBox{},
		transport:   &noticeBox{},
	}
}

// Init starts the spinner and kicks off the mount sequence.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.mountCmd())
}

// mountCmd probes both families and fetches their lists. A family that
// probes unsupported simply contributes nothing; the console only fails
// to mount when neither family answers.
func (m Model) mountCmd() tea.Cmd {
	widgets, overlays, order := m.Widgets, m.Overlays, m.SortOrder
	return func() tea.Msg {
		ctx := context.Background()
		_ = widgets.Probe(ctx)
		_ = overlays.Probe(ctx)

		if widgets.Support() == store.Unsupported && overlays.Support() == store.Unsupported {
			return mountedMsg{err: fmt.Errorf("device answered neither the widget nor the overlay endpoint")}
		}

		entities, err := collectEntities(ctx, widgets, overlays, order, true)
		return mountedMsg{entities: entities, err: err}
	}
}

// refreshCmd re-lists both supported families.
func (m Model) refreshCmd() tea.Cmd {
	widgets, overlays, order := m.Widgets, m.Overlays, m.SortOrder
	return func() tea.Msg {
		entities, err := collectEntities(context.Background(), widgets, overlays, order, false)
		return refreshedMsg{entities: entities, err: err}
	}
}

// collectEntities lists both families, skipping unsupported ones. initial
// forces a List even when the gate is still unknown.
func collectEntities(ctx context.Context, widgets, overlays *store.Store, order string, initial bool) ([]entity.Entity, error) {
	var all []entity.Entity
	var firstErr error
	for _, s := range []*store.Store{widgets, overlays} {
		if s.Support() == store.Unsupported {
			continue
		}
		var err error
		if initial {
			_, err = s.List(ctx)
		} else {
			err = s.Refresh(ctx)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		all = append(all, s.Entities()...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if order == "kind" && all[i].Kind != all[j].Kind {
			return all[i].Kind < all[j].Kind
		}
		if all[i].Identity != all[j].Identity {
			return all[i].Identity < all[j].Identity
		}
		return all[i].Kind < all[j].Kind
	})
	return all, firstErr
}

func editTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg {
		return editTickMsg(t)
	})
}

// Update handles all messages and routes them to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.closeEditor()
			return m, tea.Quit
		}
		// Any keypress dismisses a one-shot notice
		m.Notice = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case WakeMsg:
		if m.Screen == ScreenList {
			return m, m.refreshCmd()
		}
		return m, nil

	case mountedMsg:
		if msg.err != nil && len(msg.entities) == 0 {
			m.FatalErr = msg.err
			m.Screen = ScreenList
			return m, nil
		}
		m.Entities = msg.entities
		m.Screen = ScreenList
		if msg.err != nil {
			m.Notice = deviceapi.ShortMessage(msg.err)
		}
		return m, nil

	case refreshedMsg:
		m.Entities = msg.entities
		if m.Cursor >= len(m.Entities) {
			m.Cursor = max(0, len(m.Entities)-1)
		}
		if msg.err != nil {
			m.Notice = deviceapi.ShortMessage(msg.err)
		}
		return m, nil

	case mutationDoneMsg:
		if msg.err != nil {
			m.Notice = deviceapi.ShortMessage(msg.err)
		}
		return m, m.refreshCmd()

	case editTickMsg:
		return m.updateEditTick()
	}

	switch m.Screen {
	case ScreenList:
		return m.updateList(msg)
	case ScreenEdit:
		return m.updateEdit(msg)
	case ScreenBackups:
		return m.updateBackups(msg)
	}
	return m, nil
}

// updateList handles input on the entity list screen.
func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(keyMsg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}

	case key.Matches(keyMsg, m.Keys.Down):
		if m.Cursor < len(m.Entities)-1 {
			m.Cursor++
		}

	case key.Matches(keyMsg, m.Keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(keyMsg, m.Keys.Edit):
		if ent, ok := m.selected(); ok {
			return m.openEditor(ent)
		}

	case key.Matches(keyMsg, m.Keys.Add):
		return m, m.addTextOverlayCmd()

	case key.Matches(keyMsg, m.Keys.Remove):
		if ent, ok := m.selected(); ok {
			s := m.storeFor(ent.Kind)
			identity := ent.Identity
			return m, func() tea.Msg {
				return mutationDoneMsg{err: s.Remove(context.Background(), identity)}
			}
		}

	case key.Matches(keyMsg, m.Keys.Save):
		if ent, ok := m.selected(); ok {
			return m, m.saveBackupCmd(ent)
		}

	case key.Matches(keyMsg, m.Keys.Backups):
		kind := entity.KindTextOverlay
		if ent, ok := m.selected(); ok {
			kind = ent.Kind
		}
		return m.openBackups(kind)
	}

	return m, nil
}

func (m Model) selected() (entity.Entity, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Entities) {
		return entity.Entity{}, false
	}
	return m.Entities[m.Cursor], true
}

func (m Model) storeFor(kind entity.Kind) *store.Store {
	if kind == entity.KindWidget {
		return m.Widgets
	}
	return m.Overlays
}

// addTextOverlayCmd adds a placeholder text overlay for the user to edit.
func (m Model) addTextOverlayCmd() tea.Cmd {
	s := m.Overlays
	return func() tea.Msg {
		draft := entity.Entity{
			Kind:     entity.KindTextOverlay,
			Position: entity.AtAnchor("topLeft"),
			Params:   map[string]any{"text": "New text"},
		}
		return mutationDoneMsg{err: s.Add(context.Background(), draft)}
	}
}

// saveBackupCmd snapshots an entity into the kind's backup store.
func (m Model) saveBackupCmd(ent entity.Entity) tea.Cmd {
	dir := m.BackupDir
	return func() tea.Msg {
		bs, err := backup.Open(dir, ent.Kind)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		ok, err := bs.Save(ent)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		if !ok {
			return mutationDoneMsg{err: fmt.Errorf("backup limit reached (%d); delete one first", backup.MaxBackups)}
		}
		return mutationDoneMsg{}
	}
}

// openEditor seeds an edit buffer for the selected entity and switches to
// the edit screen. Activate is called immediately: the panel is rendered on
// the very next frame, which is the console's "first render".
func (m Model) openEditor(ent entity.Entity) (tea.Model, tea.Cmd) {
	notices := m.notices
	transport := m.transport

	m.Editor = editor.New(m.storeFor(ent.Kind), ent,
		editor.WithNotify(func(err error) {
			notices.post(deviceapi.ShortMessage(err))
		}),
		editor.WithTransportHook(func(err error) {
			transport.post("device unreachable: " + deviceapi.ShortMessage(err))
		}),
	)
	m.Editor.Activate()
	m.EditCursor = 0
	m.Editing = false
	m.Screen = ScreenEdit
	return m, editTick()
}

// closeEditor tears down the edit buffer, canceling pending debounce timers.
func (m *Model) closeEditor() {
	if m.Editor != nil {
		m.Editor.Close()
		m.Editor = nil
	}
	m.Editing = false
}

// updateEditTick polls the edit buffer while the edit screen is active:
// pulls one-shot notices out of the hook boxes, reseeds the buffer from the
// store cache once a sync has settled, and schedules the next tick.
func (m Model) updateEditTick() (tea.Model, tea.Cmd) {
	if m.Screen != ScreenEdit || m.Editor == nil {
		return m, nil
	}

	if msg := m.notices.take(); msg != "" {
		m.Notice = msg
	}
	if msg := m.transport.take(); msg != "" {
		m.Notice = msg
	}

	if m.Editor.State() == editor.StateReady {
		base := m.Editor.Base()
		for _, e := range m.storeFor(base.Kind).Entities() {
			if e.Identity == base.Identity {
				m.Editor.Reseed(e)
				break
			}
		}
	}

	return m, editTick()
}

// updateBackups handles input on the backups screen.
func (m Model) updateBackups(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "q", "esc", "b":
		m.Screen = ScreenList
		m.Backups = nil
		return m, m.refreshCmd()

	case "up", "k":
		if m.BackupsCur > 0 {
			m.BackupsCur--
		}

	case "down", "j":
		if m.BackupsCur < len(m.BackupsList)-1 {
			m.BackupsCur++
		}

	case "r", "enter":
		if m.Backups != nil && m.BackupsCur < len(m.BackupsList) {
			draft, err := m.Backups.Restore(m.BackupsCur)
			if err != nil {
				m.Notice = err.Error()
				return m, nil
			}
			s := m.storeFor(draft.Kind)
			m.Screen = ScreenList
			m.Backups = nil
			return m, func() tea.Msg {
				return mutationDoneMsg{err: s.Add(context.Background(), draft)}
			}
		}

	case "d", "x":
		if m.Backups != nil && m.BackupsCur < len(m.BackupsList) {
			if err := m.Backups.Delete(m.BackupsCur); err != nil {
				m.Notice = err.Error()
				return m, nil
			}
			m.BackupsList = m.Backups.List()
			if m.BackupsCur >= len(m.BackupsList) {
				m.BackupsCur = max(0, len(m.BackupsList)-1)
			}
		}
	}

	return m, nil
}

// openBackups loads the backup list for a kind and switches screens.
func (m Model) openBackups(kind entity.Kind) (tea.Model, tea.Cmd) {
	bs, err := backup.Open(m.BackupDir, kind)
	if err != nil {
		m.Notice = err.Error()
		return m, nil
	}
	m.Backups = bs
	m.BackupKind = kind
	m.BackupsList = bs.List()
	m.BackupsCur = 0
	m.Screen = ScreenBackups
	return m, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
