package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-heapcheck/config"
	"github.com/wippyai/wasm-heapcheck/frontend"
	"github.com/wippyai/wasm-heapcheck/planner"
	"github.com/wippyai/wasm-heapcheck/trap"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))
)

// listHeight is the number of plans shown at once.
const listHeight = 16

// probeItem is one plan the explorer can evaluate: an access or a prologue.
type probeItem struct {
	label string
	plan  planner.Plan
	stack planner.StackPlan
	// isStack selects stack over plan.
	isStack bool
}

type modelState int

const (
	stateSelect modelState = iota
	stateProbe
	stateShowResult
)

type interactiveModel struct {
	err      error
	report   *frontend.Report
	result   string
	items    []probeItem
	inputs   []textinput.Model
	labels   []string
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(report *frontend.Report) *interactiveModel {
	m := &interactiveModel{report: report, state: stateSelect}
	for _, f := range report.Functions {
		m.items = append(m.items, probeItem{
			label:   fmt.Sprintf("func %d prologue", f.Index),
			stack:   f.Stack,
			isStack: true,
		})
		for _, e := range f.Entries {
			m.items = append(m.items, probeItem{
				label: fmt.Sprintf("func %d +%#x %s", e.Origin.Func, e.Origin.Offset, accessLabel(e.Access)),
				plan:  e.Plan,
			})
		}
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateProbe {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.items)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelect:
				if len(m.items) == 0 {
					return m, nil
				}
				m.prepareInputs()
				m.state = stateProbe
				return m, textinput.Blink

			case stateProbe:
				m.result, m.err = m.probe()
				m.state = stateShowResult
				return m, nil

			case stateShowResult:
				m.state = stateProbe
				m.result = ""
				m.err = nil
				return m, nil
			}

		case "tab":
			if m.state == stateProbe && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateProbe, stateShowResult:
				m.state = stateSelect
				m.inputs = nil
				m.result = ""
				m.err = nil
			}
		}
	}

	if m.state == stateProbe {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	item := m.items[m.selected]
	switch {
	case item.isStack:
		m.labels = []string{"sp", "stack limit"}
	case item.plan.Check.Kind.Dynamic():
		m.labels = []string{"index", "bound"}
	default:
		m.labels = []string{"index"}
	}

	m.inputs = make([]textinput.Model, len(m.labels))
	for i, label := range m.labels {
		ti := textinput.New()
		ti.Placeholder = "0x0, 4096 or 64KiB"
		ti.Prompt = label + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// probe evaluates the selected plan against the entered values.
func (m *interactiveModel) probe() (string, error) {
	values := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		s := strings.TrimSpace(input.Value())
		if s == "" {
			continue
		}
		v, err := config.ParseSize(s)
		if err != nil {
			return "", fmt.Errorf("%s: %w", m.labels[i], err)
		}
		values[i] = uint64(v)
	}

	item := m.items[m.selected]
	if item.isStack {
		return m.describe(item.stack.Evaluate(values[0], values[1]), "sp"), nil
	}
	machine := planner.Machine{Index: values[0]}
	if len(values) > 1 {
		machine.Bound = values[1]
	}
	return m.describe(item.plan.Evaluate(machine), "address"), nil
}

func (m *interactiveModel) describe(out planner.Outcome, what string) string {
	switch {
	case out.Fault:
		if site, msg, ok := m.report.Diagnose(out.Trap); ok {
			return fmt.Sprintf("trap#%d at %s: %s", site.ID, site.Origin, msg)
		}
		return fmt.Sprintf("trap: %s", trap.Describe(out.Reason))
	case out.Redirected:
		return fmt.Sprintf("masked: %s redirected to %#x", what, out.Address)
	default:
		return fmt.Sprintf("pass: %s %#x", what, out.Address)
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Heap Check Explorer"))
	b.WriteString(" ")
	b.WriteString(m.report.Name)
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString("No functions to explore.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelect:
		b.WriteString("Select a check to probe:\n\n")
		start := m.selected - listHeight/2
		if start > len(m.items)-listHeight {
			start = len(m.items) - listHeight
		}
		if start < 0 {
			start = 0
		}
		end := min(start+listHeight, len(m.items))
		for i := start; i < end; i++ {
			line := m.items[i].label
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d • ↑/↓ select • enter probe • q quit", m.selected+1, len(m.items))))

	case stateProbe, stateShowResult:
		item := m.items[m.selected]
		b.WriteString(funcStyle.Render(item.label))
		b.WriteString("\n")
		if item.isStack {
			b.WriteString(item.stack.String())
		} else {
			b.WriteString(item.plan.String())
		}
		b.WriteString("\n\n")
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateProbe {
			b.WriteString(helpStyle.Render("tab next field • enter evaluate • esc back"))
			break
		}
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit • esc back • q quit"))
	}

	return b.String()
}

func runInteractive(report *frontend.Report) error {
	p := tea.NewProgram(newInteractiveModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
