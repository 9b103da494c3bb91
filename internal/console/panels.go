package console

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nwstad/overlayctl/internal/backup"
	"github.com/nwstad/overlayctl/internal/editor"
	"github.com/nwstad/overlayctl/internal/entity"
)

// positionRow is the index of the placement row in the edit panel; param
// fields follow it.
const positionRow = 0

// updateEdit handles input on the edit screen.
func (m Model) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.Editor == nil {
		return m, nil
	}

	draft := m.Editor.Draft()
	fields := paramFields(draft)

	if m.Editing {
		return m.updateTextEditing(keyMsg, fields)
	}

	switch keyMsg.String() {
	case "q", "esc":
		m.closeEditor()
		m.Screen = ScreenList
		return m, m.refreshCmd()

	case "up", "k":
		if m.EditCursor > 0 {
			m.EditCursor--
		}

	case "down", "j":
		if m.EditCursor < len(fields) {
			m.EditCursor++
		}

	default:
		if m.EditCursor == positionRow {
			m.handlePositionKey(keyMsg.String(), draft)
		} else if idx := m.EditCursor - 1; idx >= 0 && idx < len(fields) {
			return m.handleFieldKey(keyMsg.String(), fields[idx], draft)
		}
	}

	return m, nil
}

// updateTextEditing routes keystrokes into the text input while a string
// field is being edited inline. Every keystroke lands in the edit buffer
// immediately; the debounce window decides when it reaches the device.
func (m Model) updateTextEditing(keyMsg tea.KeyMsg, fields []string) (tea.Model, tea.Cmd) {
	switch keyMsg.String() {
	case "esc", "enter":
		m.Editing = false
		m.TextInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.TextInput, cmd = m.TextInput.Update(keyMsg)

	if idx := m.EditCursor - 1; idx >= 0 && idx < len(fields) {
		m.Editor.Set(editor.GroupText, fields[idx], m.TextInput.Value())
	}
	return m, cmd
}

// handlePositionKey applies placement edits on the position row.
//
// With an anchor selected, left/right cycle through the kind's anchor
// vocabulary and "c" switches to custom placement (restoring the retained
// pair). In custom mode the arrows nudge X and ","/"." nudge Y.
func (m Model) handlePositionKey(k string, draft entity.Entity) {
	const step = 0.05

	pos := draft.Position
	if pos.Custom {
		switch k {
		case "left", "h":
			m.Editor.SetCoordinates(pos.X-step, pos.Y)
		case "right", "l":
			m.Editor.SetCoordinates(pos.X+step, pos.Y)
		case ",":
			m.Editor.SetCoordinates(pos.X, pos.Y-step)
		case ".":
			m.Editor.SetCoordinates(pos.X, pos.Y+step)
		case "a":
			anchors := entity.AnchorsFor(draft.Kind)
			if len(anchors) > 0 {
				m.Editor.SetAnchor(anchors[0])
			}
		}
		return
	}

	switch k {
	case "left", "h":
		m.Editor.SetAnchor(cycleAnchor(draft.Kind, pos.Anchor, -1))
	case "right", "l":
		m.Editor.SetAnchor(cycleAnchor(draft.Kind, pos.Anchor, +1))
	case "c":
		m.Editor.SelectCustom()
	}
}

// handleFieldKey applies an edit to a parameter field based on its type.
func (m Model) handleFieldKey(k, field string, draft entity.Entity) (tea.Model, tea.Cmd) {
	value := draft.Params[field]

	switch v := value.(type) {
	case string:
		if k == "enter" {
			m.Editing = true
			m.TextInput.SetValue(v)
			m.TextInput.CursorEnd()
			return m, m.TextInput.Focus()
		}

	case bool:
		if k == "enter" || k == " " {
			m.Editor.Set(editor.GroupToggle, field, !v)
		}

	default:
		if n, ok := toFloat(value); ok {
			switch k {
			case "left", "h":
				m.Editor.Set(editor.GroupNumeric, field, m.clampNumeric(field, n-1))
			case "right", "l":
				m.Editor.Set(editor.GroupNumeric, field, m.clampNumeric(field, n+1))
			}
		}
	}

	return m, nil
}

// clampNumeric applies capability bounds to fields the descriptor covers.
func (m Model) clampNumeric(field string, n float64) float64 {
	base := m.Editor.Base()
	caps := m.storeFor(base.Kind).Capabilities()
	if caps == nil {
		return n
	}
	switch field {
	case "fontSize":
		return float64(caps.ClampFontSize(int(n)))
	case "transparency":
		return float64(caps.ClampTransparency(int(n)))
	}
	return n
}

// cycleAnchor steps through the kind's anchor vocabulary.
func cycleAnchor(kind entity.Kind, current string, dir int) string {
	anchors := entity.AnchorsFor(kind)
	if len(anchors) == 0 {
		return current
	}
	idx := 0
	for i, a := range anchors {
		if a == current {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(anchors)) % len(anchors)
	return anchors[idx]
}

// paramFields returns the draft's parameter names in display order, text
// first since it is what people look for.
func paramFields(e entity.Entity) []string {
	fields := make([]string, 0, len(e.Params))
	for f := range e.Params {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		if (fields[i] == "text") != (fields[j] == "text") {
			return fields[i] == "text"
		}
		return fields[i] < fields[j]
	})
	return fields
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// View renders the current screen.
func (m Model) View() string {
	switch m.Screen {
	case ScreenLoading:
		return m.viewLoading()
	case ScreenEdit:
		return m.viewEdit()
	case ScreenBackups:
		return m.viewBackups()
	default:
		return m.viewList()
	}
}

func (m Model) viewLoading() string {
	content := fmt.Sprintf("\n %s Connecting to %s...\n", m.Spinner.View(), m.DeviceLabel)
	return RenderApplicationContainer(content, "ctrl+c: quit", m.DeviceLabel, m.Width, m.Height)
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Widgets & Overlays"))
	b.WriteString("\n")
	b.WriteString(m.supportLine())
	b.WriteString("\n\n")

	if m.FatalErr != nil {
		b.WriteString(ErrorStyle.Render("✗ " + m.FatalErr.Error()))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render("Check the device address and credentials, then restart the console."))
		return RenderApplicationContainer(b.String(), "q: quit", m.DeviceLabel, m.Width, m.Height)
	}

	if len(m.Entities) == 0 {
		b.WriteString(SubtitleStyle.Render("No entities on the device. Press 'a' to add a text overlay."))
		b.WriteString("\n")
	}

	for i, e := range m.Entities {
		row := fmt.Sprintf("%-4d %-13s %-13s %s", e.Identity, e.Kind, e.Position, summarize(e.Params))
		b.WriteString(RenderListItem(row, i == m.Cursor))
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString("\n")
		b.WriteString(NoticeStyle.Render(m.Notice))
		b.WriteString("\n")
	}

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.DeviceLabel, m.Width, m.Height)
}

func (m Model) viewEdit() string {
	if m.Editor == nil {
		return m.viewList()
	}

	draft := m.Editor.Draft()
	base := m.Editor.Base()
	fields := paramFields(draft)

	var b strings.Builder
	b.WriteString(RenderTitle(fmt.Sprintf("Editing %s %d", base.Kind, base.Identity)))
	b.WriteString("  ")
	b.WriteString(m.stateBadge())
	b.WriteString("\n\n")

	// Position row
	posLabel := LabelStyle.Render("position")
	posValue := draft.Position.String()
	if m.EditCursor == positionRow {
		posValue = FocusedFieldStyle.Render("‹ " + posValue + " ›")
	}
	b.WriteString(fmt.Sprintf("  %s %s\n", posLabel, posValue))

	// Parameter rows
	for i, f := range fields {
		label := LabelStyle.Render(f)
		value := fmt.Sprintf("%v", draft.Params[f])

		if m.Editing && m.EditCursor == i+1 {
			value = m.TextInput.View()
		} else if m.EditCursor == i+1 {
			value = FocusedFieldStyle.Render("‹ " + value + " ›")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", label, value))
	}

	if pending := m.Editor.PendingFields(); len(pending) > 0 {
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("pending: " + strings.Join(pending, ", ")))
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString("\n")
		b.WriteString(NoticeStyle.Render(m.Notice))
		b.WriteString("\n")
	}

	footer := "↑/↓: field • ←/→: adjust • enter: edit text • esc: back"
	if m.EditCursor == positionRow {
		if draft.Position.Custom {
			footer = "←/→: nudge x • ,/.: nudge y • a: anchor • esc: back"
		} else {
			footer = "←/→: cycle anchor • c: custom placement • esc: back"
		}
	}
	if m.Editing {
		footer = "type to edit • enter/esc: done"
	}

	return RenderApplicationContainer(b.String(), footer, m.DeviceLabel, m.Width, m.Height)
}

func (m Model) viewBackups() string {
	var b strings.Builder
	b.WriteString(RenderTitle(fmt.Sprintf("%s backups", m.BackupKind)))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%d of %d slots used", len(m.BackupsList), backup.MaxBackups)))
	b.WriteString("\n\n")

	if len(m.BackupsList) == 0 {
		b.WriteString(SubtitleStyle.Render("No backups saved. Press 's' on an entity in the list to save one."))
		b.WriteString("\n")
	}

	for i, r := range m.BackupsList {
		row := fmt.Sprintf("%-4d %-13s %-20s %s",
			i, r.Position, r.SavedAt.Local().Format("2006-01-02 15:04:05"), summarize(r.Params))
		b.WriteString(RenderListItem(row, i == m.BackupsCur))
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString("\n")
		b.WriteString(NoticeStyle.Render(m.Notice))
		b.WriteString("\n")
	}

	footer := "r/enter: restore as new • d: delete • esc: back"
	return RenderApplicationContainer(b.String(), footer, m.DeviceLabel, m.Width, m.Height)
}

// supportLine summarizes the capability gate for both families.
func (m Model) supportLine() string {
	parts := []string{
		"widgets: " + m.Widgets.Support().String(),
		"overlays: " + m.Overlays.Support().String(),
	}
	return SubtitleStyle.Render(strings.Join(parts, "   "))
}

// stateBadge renders the edit buffer's lifecycle state.
func (m Model) stateBadge() string {
	switch m.Editor.State() {
	case editor.StateSyncing:
		return StatusSyncingStyle.Render("● syncing")
	case editor.StateDirty:
		return StatusDirtyStyle.Render("● dirty")
	case editor.StateSeeding:
		return SubtitleStyle.Render("● seeding")
	default:
		return StatusReadyStyle.Render("● ready")
	}
}

func summarize(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "text") != (keys[j] == "text") {
			return keys[i] == "text"
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}
