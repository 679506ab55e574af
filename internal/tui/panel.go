// internal/tui/panel.go
//
// The settings panel the plugin inserts under the host's prompt box. It is a
// collapsible section with a checkbox and a text field per lock tier, a
// switch for the automatic strong lock, and one save button. Saving hands all
// seven values to the plugin at once (hot reload); nothing is written to disk.

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/character-lock/internal/lock"
)

const (
	// PanelTitle is the header of the collapsible section.
	PanelTitle = "Character Lock Prompt (Plugin)"
	// SaveLabel is the text of the save button.
	SaveLabel = "Apply (hot reload)"
	// SavedNotice confirms a save.
	SavedNotice = "Settings applied. No restart required."

	textLines    = 3
	defaultWidth = 72
)

// SaveFunc receives the panel values and returns the notice to display.
type SaveFunc func(lock.Settings) string

type itemKind int

const (
	itemHeader itemKind = iota
	itemCheckbox
	itemText
	itemButton
)

// checkbox and text slots
const (
	checkEnabled = iota
	checkNegEnabled
	checkAutoStrong
)

const (
	textLock = iota
	textNegLock
	textStrong
	textStrongNeg
)

type item struct {
	kind  itemKind
	label string
	slot  int
}

var panelItems = []item{
	{kind: itemHeader, label: PanelTitle},
	{kind: itemCheckbox, label: "Enable Character Lock", slot: checkEnabled},
	{kind: itemText, label: "Lock Prompt (before main prompt)", slot: textLock},
	{kind: itemCheckbox, label: "Enable Negative Lock", slot: checkNegEnabled},
	{kind: itemText, label: "Negative Lock Prompt (before negative prompt)", slot: textNegLock},
	{kind: itemCheckbox, label: "Auto Strong-Lock for 'Continue Video' / 'Last Video'", slot: checkAutoStrong},
	{kind: itemText, label: "Strong Lock (MAIN Prompt for continue modes)", slot: textStrong},
	{kind: itemText, label: "Strong Negative Lock (NEG prompt for continue modes)", slot: textStrongNeg},
	{kind: itemButton, label: SaveLabel},
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	buttonStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	sectionStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Panel is the bubbletea model for the settings section.
type Panel struct {
	save   SaveFunc
	open   bool
	focus  int
	checks [3]bool
	texts  [4]textarea.Model
	notice string
	width  int
}

// NewPanel builds a collapsed panel showing initial. save runs on every apply.
func NewPanel(initial lock.Settings, save SaveFunc) *Panel {
	p := &Panel{save: save, width: defaultWidth}
	p.checks[checkEnabled] = initial.Enabled
	p.checks[checkNegEnabled] = initial.NegEnabled
	p.checks[checkAutoStrong] = initial.AutoStrong
	values := [4]string{initial.LockPrompt, initial.NegLockPrompt, initial.StrongLock, initial.StrongNeg}
	for i, value := range values {
		p.texts[i] = newTextField(value, p.width)
	}
	return p
}

func newTextField(value string, width int) textarea.Model {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Prompt = "│ "
	ta.SetHeight(textLines)
	ta.SetWidth(width)
	ta.SetValue(value)
	return ta
}

// Settings returns the values currently shown in the panel.
func (p *Panel) Settings() lock.Settings {
	return lock.Settings{
		Enabled:       p.checks[checkEnabled],
		NegEnabled:    p.checks[checkNegEnabled],
		AutoStrong:    p.checks[checkAutoStrong],
		LockPrompt:    p.texts[textLock].Value(),
		NegLockPrompt: p.texts[textNegLock].Value(),
		StrongLock:    p.texts[textStrong].Value(),
		StrongNeg:     p.texts[textStrongNeg].Value(),
	}
}

// Open reports whether the section is expanded.
func (p *Panel) Open() bool { return p.open }

// Notice returns the last confirmation message.
func (p *Panel) Notice() string { return p.notice }

// Init implements tea.Model.
func (p *Panel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p *Panel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.resize(msg.Width)
		return p, nil
	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return p, p.updateFocusedText(msg)
}

func (p *Panel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return p, tea.Quit
	case "tab", "down":
		if p.current().kind != itemText || msg.String() == "tab" {
			return p, p.moveFocus(1)
		}
	case "shift+tab", "up":
		if p.current().kind != itemText || msg.String() == "shift+tab" {
			return p, p.moveFocus(-1)
		}
	case "ctrl+s":
		p.apply()
		return p, nil
	}

	current := p.current()
	switch current.kind {
	case itemHeader:
		if isActivate(msg) {
			p.open = !p.open
			p.notice = ""
		}
		return p, nil
	case itemCheckbox:
		if isActivate(msg) || msg.String() == "x" {
			p.checks[current.slot] = !p.checks[current.slot]
		}
		return p, nil
	case itemButton:
		if isActivate(msg) {
			p.apply()
		}
		return p, nil
	}
	return p, p.updateFocusedText(msg)
}

func (p *Panel) apply() {
	if p.save == nil {
		return
	}
	p.notice = p.save(p.Settings())
}

func (p *Panel) current() item {
	return panelItems[p.focus]
}

// moveFocus steps through the items; a collapsed panel only has its header.
func (p *Panel) moveFocus(delta int) tea.Cmd {
	if !p.open {
		p.focus = 0
		return nil
	}
	if prev := p.current(); prev.kind == itemText {
		p.texts[prev.slot].Blur()
	}
	p.focus = (p.focus + delta + len(panelItems)) % len(panelItems)
	if next := p.current(); next.kind == itemText {
		return p.texts[next.slot].Focus()
	}
	return nil
}

func (p *Panel) updateFocusedText(msg tea.Msg) tea.Cmd {
	current := p.current()
	if current.kind != itemText {
		return nil
	}
	var cmd tea.Cmd
	p.texts[current.slot], cmd = p.texts[current.slot].Update(msg)
	return cmd
}

func (p *Panel) resize(width int) {
	if width <= 0 {
		return
	}
	p.width = max(20, width-4)
	for i := range p.texts {
		p.texts[i].SetWidth(p.width)
	}
}

// View implements tea.Model.
func (p *Panel) View() string {
	var b strings.Builder
	marker := "▸"
	if p.open {
		marker = "▾"
	}
	header := marker + " " + PanelTitle
	if p.focus == 0 {
		b.WriteString(focusStyle.Render(header))
	} else {
		b.WriteString(headerStyle.Render(header))
	}
	b.WriteString("\n")
	if !p.open {
		b.WriteString(hintStyle.Render("enter: expand · esc: quit"))
		return b.String()
	}

	var body strings.Builder
	for idx, it := range panelItems[1:] {
		focused := idx+1 == p.focus
		switch it.kind {
		case itemCheckbox:
			box := "[ ]"
			if p.checks[it.slot] {
				box = "[x]"
			}
			line := box + " " + it.label
			if focused {
				line = focusStyle.Render(line)
			}
			body.WriteString(line + "\n")
		case itemText:
			label := labelStyle.Render(it.label)
			if focused {
				label = focusStyle.Render(it.label)
			}
			body.WriteString(label + "\n")
			body.WriteString(p.texts[it.slot].View() + "\n")
		case itemButton:
			style := buttonStyle
			if focused {
				style = style.BorderForeground(lipgloss.Color("#F7B801"))
			}
			body.WriteString(style.Render(it.label) + "\n")
		}
	}
	if p.notice != "" {
		body.WriteString(noticeStyle.Render(p.notice) + "\n")
	}
	body.WriteString(hintStyle.Render("tab/shift+tab: move · space: toggle · enter: apply · ctrl+s: apply · esc: quit"))
	b.WriteString(sectionStyle.Render(body.String()))
	return b.String()
}

func isActivate(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "enter", " ":
		return true
	}
	return false
}
