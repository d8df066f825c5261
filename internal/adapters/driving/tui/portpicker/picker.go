// Package portpicker asks the user to choose a serial port.
package portpicker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/idfflash/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/idfflash/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Picker implements the interface.
var _ driven.PortSelector = (*Picker)(nil)

// Picker runs an interactive list on a terminal.
type Picker struct {
	in  io.Reader
	out io.Writer
}

// New creates a picker reading keys from in and drawing to out.
func New(in io.Reader, out io.Writer) *Picker {
	return &Picker{in: in, out: out}
}

// Choose shows ports and returns the one selected.
// Returns context.Canceled if the user quits.
func (p *Picker) Choose(ctx context.Context, ports []domain.SerialPortInfo) (domain.SerialPortInfo, error) {
	if len(ports) == 0 {
		return domain.SerialPortInfo{}, domain.ErrNoSerialPorts
	}

	program := tea.NewProgram(NewModel(ports),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return domain.SerialPortInfo{}, ctx.Err()
		}
		return domain.SerialPortInfo{}, fmt.Errorf("port picker: %w", err)
	}

	m, ok := final.(Model)
	if !ok || m.Cancelled() {
		return domain.SerialPortInfo{}, context.Canceled
	}
	return m.Selected(), nil
}

// Model is the bubbletea model behind Picker.
type Model struct {
	ports     []domain.SerialPortInfo
	cursor    int
	chosen    bool
	cancelled bool

	keys   *keymap.KeyMap
	styles *styles.Styles
	help   help.Model
}

// NewModel creates a model listing ports.
func NewModel(ports []domain.SerialPortInfo) Model {
	return Model{
		ports:  ports,
		keys:   keymap.DefaultKeyMap(),
		styles: styles.DefaultStyles(),
		help:   help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Select):
		m.chosen = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.ports)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.First):
		m.cursor = 0
	case key.Matches(keyMsg, m.keys.Last):
		m.cursor = len(m.ports) - 1
	case key.Matches(keyMsg, m.keys.Jump):
		if i, ok := keymap.JumpIndex(keyMsg.String()); ok && i < len(m.ports) {
			m.cursor = i
			m.chosen = true
			return m, tea.Quit
		}
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.chosen || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Several serial ports found, select one:"))
	b.WriteString("\n\n")
	for i, p := range m.ports {
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + p.Description()))
		} else {
			b.WriteString(m.styles.Normal.Render("  " + p.Description()))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

// Selected returns the port under the cursor.
func (m Model) Selected() domain.SerialPortInfo {
	return m.ports[m.cursor]
}

// Cancelled reports whether the user quit without choosing.
func (m Model) Cancelled() bool {
	return m.cancelled
}
