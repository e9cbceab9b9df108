package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-heapcheck/frontend"
	"github.com/wippyai/wasm-heapcheck/planner"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	elidedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	trapStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	maskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// renderer prints reports, styled only when writing to a terminal.
type renderer struct {
	w      io.Writer
	styled bool
}

func newRenderer(w io.Writer, styled bool) *renderer {
	return &renderer{w: w, styled: styled}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *renderer) report(rep *frontend.Report) {
	title := "heapcheck"
	if rep.Spectre {
		title += " (spectre)"
	}
	fmt.Fprintf(r.w, "%s %s\n\n", r.style(titleStyle, title), rep.Name)

	fmt.Fprintln(r.w, r.style(headerStyle, "Memories"))
	for _, d := range rep.Memories {
		fmt.Fprintf(r.w, "  memory %d: %s\n", d.Memory(), d)
	}
	if len(rep.Memories) == 0 {
		fmt.Fprintln(r.w, "  none")
	}

	fmt.Fprintf(r.w, "\n%s\n", r.style(headerStyle, "Functions"))
	for _, f := range rep.Functions {
		fmt.Fprintf(r.w, "  %s locals=%d traps=%d %s\n",
			r.style(funcStyle, fmt.Sprintf("func %d", f.Index)), f.Locals, f.TrapSites, f.Stack)
		for _, e := range f.Entries {
			fmt.Fprintf(r.w, "    +%#06x %-28s %s\n", e.Origin.Offset, accessLabel(e.Access), r.plan(e.Plan))
		}
	}

	s := rep.Summary
	fmt.Fprintf(r.w, "\n%s\n", r.style(headerStyle, "Summary"))
	fmt.Fprintf(r.w, "  functions=%d accesses=%d elided=%d trapping=%d masked=%d always-trap=%d guard-fault=%d folded=%d\n",
		s.Functions, s.Accesses, s.Elided, s.Trapping, s.Masked, s.AlwaysTrap, s.GuardFault, s.Folded)
	if !rep.Validated {
		fmt.Fprintln(r.w, r.style(helpStyle, "  module was not validated"))
	}

	traps := rep.Traps()
	fmt.Fprintf(r.w, "\n%s\n", r.style(headerStyle, "Trap sites"))
	for _, site := range traps {
		fmt.Fprintf(r.w, "  trap#%-5d %-14s %s\n", site.ID, site.Origin, site.Reason)
	}
	if len(traps) == 0 {
		fmt.Fprintln(r.w, "  none")
	}
	fmt.Fprintln(r.w)
}

func (r *renderer) plan(p planner.Plan) string {
	text := p.String()
	switch {
	case p.AlwaysTraps():
		return r.style(errorStyle, text)
	case p.Strategy == planner.TrapOnOutOfRange:
		return r.style(trapStyle, text)
	case p.Strategy == planner.MaskToSafeAddress:
		return r.style(maskStyle, text)
	default:
		return r.style(elidedStyle, text)
	}
}

func accessLabel(a frontend.Access) string {
	label := fmt.Sprintf("%s offset=%#x", a.Name, a.Offset)
	if a.Memory != 0 {
		label += fmt.Sprintf(" mem=%d", a.Memory)
	}
	return label
}
