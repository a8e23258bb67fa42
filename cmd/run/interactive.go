package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/fuel-sched/config"
	"github.com/wippyai/fuel-sched/executor"
	"github.com/wippyai/fuel-sched/fuel"
	"github.com/wippyai/fuel-sched/sched"
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

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	waitingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0E68C"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type tickMsg time.Time

type interactiveModel struct {
	cfg    config.Config
	exec   *executor.Executor
	mgr    *fuel.Manager
	handle *fuel.Handle
	gauge  progress.Model

	taskCount int
	polled    int
	auto      bool
	err       error
}

func newInteractiveModel(cfg config.Config, taskCount int) (*interactiveModel, error) {
	mgr := fuel.NewManager()
	mgr.SetFuelEnforcement(cfg.FuelEnforcement)
	mgr.SetVerificationLevel(cfg.Verification())
	if cfg.GlobalFuelLimit > 0 {
		mgr.SetGlobalFuelLimit(cfg.GlobalFuelLimit)
	}

	handle, err := mgr.SpawnThreadWithFuel(fuel.SpawnRequest{
		ComponentID: 1,
		Name:        "executor",
		Entry:       func(tc *fuel.ThreadContext) error { return nil },
	}, cfg.FuelConfig())
	if err != nil {
		return nil, err
	}

	exec := executor.New(executor.Options{
		Policy:             cfg.SchedPolicy(),
		Mode:               cfg.ASILMode(),
		VerificationLevel:  cfg.Verification(),
		MaxTasks:           cfg.MaxTasks,
		ReadyQueueCapacity: cfg.ReadyQueueCapacity,
	})
	exec.AttachFuel(mgr, handle.ThreadID())

	if err := spawnDemoTasks(exec, taskCount); err != nil {
		exec.Close()
		return nil, err
	}

	return &interactiveModel{
		cfg:       cfg,
		exec:      exec,
		mgr:       mgr,
		handle:    handle,
		gauge:     progress.New(progress.WithDefaultGradient()),
		taskCount: taskCount,
	}, nil
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.exec.Close()
			m.mgr.JoinThreadWithFuel(m.handle.ThreadID())
			return m, tea.Quit

		case " ":
			m.step()

		case "a":
			m.auto = !m.auto
			if m.auto {
				return m, tick()
			}

		case "p":
			next := (m.exec.Scheduler().Policy() + 1) % 4
			m.exec.Scheduler().SetPolicy(next)

		case "s":
			if err := spawnDemoTasks(m.exec, m.taskCount); err != nil {
				m.err = err
			}
		}

	case tickMsg:
		if m.auto {
			m.step()
			return m, tick()
		}
	}

	return m, nil
}

func (m *interactiveModel) step() {
	progressed, err := m.exec.Step()
	if err != nil {
		m.err = err
		return
	}
	if progressed {
		m.polled++
		m.err = nil
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fuel Scheduler"))
	b.WriteString("\n\n")

	stats := m.exec.Scheduler().Statistics()
	b.WriteString(fmt.Sprintf("Policy: %s   ASIL: %s   Clock: %d fuel   Polls: %d\n\n",
		stats.Policy, m.cfg.ASILMode().Level, stats.GlobalScheduleTime, m.polled))

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-10s %-14s %10s %10s %8s",
		"TASK", "PRIORITY", "STATE", "FUEL", "DEADLINE", "POLLS")))
	b.WriteString("\n")
	m.exec.Scheduler().Tasks(func(t sched.Task) {
		row := fmt.Sprintf("%-6d %-10s %-14s %10d %10d %8d",
			t.ID, t.Priority, t.State, t.FuelConsumed, t.Deadline, t.ScheduleCount)
		switch t.State {
		case sched.StateReady:
			b.WriteString(readyStyle.Render(row))
		case sched.StateWaiting:
			b.WriteString(waitingStyle.Render(row))
		default:
			b.WriteString(doneStyle.Render(row))
		}
		b.WriteString("\n")
	})

	if status, err := m.mgr.GetThreadFuelStatus(m.handle.ThreadID()); err == nil {
		used := 0.0
		if status.InitialFuel > 0 {
			used = float64(status.ConsumedFuel) / float64(status.InitialFuel)
		}
		b.WriteString("\nThread fuel ")
		b.WriteString(m.gauge.ViewAs(used))
		b.WriteString(fmt.Sprintf("  %d/%d", status.ConsumedFuel, status.InitialFuel))
		if status.Exhausted {
			b.WriteString(" ")
			b.WriteString(errorStyle.Render("EXHAUSTED"))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\nReady: %d  Waiting: %d  Efficiency: %.1f%%\n",
		stats.ReadyTasks, stats.WaitingTasks, stats.SchedulingEfficiency()))

	if violations := m.exec.Scheduler().CheckDeadlines(); len(violations) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Deadline violations: %v", violations)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space step • a auto • p policy • s spawn • q quit"))
	b.WriteString("\n")
	return b.String()
}

func runInteractive(cfg config.Config, taskCount int) error {
	model, err := newInteractiveModel(cfg, taskCount)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
