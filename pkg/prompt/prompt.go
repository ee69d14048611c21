package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/cuemby/elementstates/pkg/heuristic"
	"github.com/cuemby/elementstates/pkg/operation"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/mattn/go-isatty"
)

// WindowLayout is the input format of the window prompts
const WindowLayout = time.DateTime

// Disclaimer is shown before a restore starts
const Disclaimer = "This action might take a very long time on a system with a lot of elements. " +
	"Please do not abort while the restore is running. Progress is written to the log."

// Prompter asks the operator what to do
type Prompter interface {
	// ChooseOperation returns operation.ErrCancelled when the operator
	// backs out
	ChooseOperation() (operation.Operation, error)

	// ChooseSnapshot and ChooseWindow return ok=false when the operator
	// cancels
	ChooseSnapshot(ids []types.SnapshotID) (types.SnapshotID, bool, error)
	ChooseWindow(agents []*types.Agent) (heuristic.Window, bool, error)

	ShowResult(msg string)
}

// Interactive reports whether f is attached to a terminal
func Interactive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// HuhPrompter implements Prompter with terminal forms
type HuhPrompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
	now        func() time.Time
}

// NewHuhPrompter creates a prompter on the given streams. Accessible mode
// replaces the full-screen forms with plain line prompts.
func NewHuhPrompter(in io.Reader, out io.Writer, accessible bool) *HuhPrompter {
	return &HuhPrompter{
		in:         in,
		out:        out,
		accessible: accessible,
		now:        time.Now,
	}
}

func (p *HuhPrompter) run(groups ...*huh.Group) (bool, error) {
	form := huh.NewForm(groups...).
		WithTheme(huh.ThemeCharm()).
		WithAccessible(p.accessible).
		WithInput(p.in).
		WithOutput(p.out)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ChooseOperation asks for one of the three flows
func (p *HuhPrompter) ChooseOperation() (operation.Operation, error) {
	op := operation.Dump

	options := make([]huh.Option[operation.Operation], 0, len(operation.All()))
	for _, o := range operation.All() {
		options = append(options, huh.NewOption(o.Label(), o))
	}

	ok, err := p.run(huh.NewGroup(
		huh.NewSelect[operation.Operation]().
			Title("Element states").
			Description("What do you want to do?").
			Options(options...).
			Value(&op),
	))
	if err != nil {
		return op, err
	}
	if !ok {
		return op, operation.ErrCancelled
	}
	return op, nil
}

// ChooseSnapshot asks for a snapshot, newest preselected
func (p *HuhPrompter) ChooseSnapshot(ids []types.SnapshotID) (types.SnapshotID, bool, error) {
	if len(ids) == 0 {
		return types.SnapshotID{}, false, nil
	}

	selected := ids[0].Display()
	confirmed := true
	ok, err := p.run(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Element states restore").
				Description("Please select a timestamp from which to restore element states:").
				Options(huh.NewOptions(SnapshotOptions(ids)...)...).
				Value(&selected),
		),
		huh.NewGroup(
			huh.NewNote().Title("Note").Description(Disclaimer),
			huh.NewConfirm().
				Affirmative("Restore").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err != nil || !ok || !confirmed {
		return types.SnapshotID{}, false, err
	}

	id, err := types.ParseSnapshotDisplay(selected)
	if err != nil {
		return types.SnapshotID{}, false, err
	}
	return id, true, nil
}

// ChooseWindow asks for the window bounds and the agents. The window
// defaults to the last 24 hours and every agent.
func (p *HuhPrompter) ChooseWindow(agents []*types.Agent) (heuristic.Window, bool, error) {
	now := p.now()
	from := now.Add(-24 * time.Hour).Format(WindowLayout)
	to := now.Format(WindowLayout)

	options, selected := AgentOptions(agents)
	confirmed := true

	ok, err := p.run(
		huh.NewGroup(
			huh.NewNote().
				Title("Element states restore").
				Description("Please select the start and end of the timespan in which elements that were stopped, should be started again:"),
			huh.NewInput().Title("Start:").Value(&from).Validate(validateTime),
			huh.NewInput().Title("End:").Value(&to).Validate(validateTime),
		),
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Select the agents in the cluster to restore the states from:").
				Options(options...).
				Value(&selected),
		),
		huh.NewGroup(
			huh.NewNote().Title("Note").Description(Disclaimer),
			huh.NewConfirm().
				Affirmative("Restore").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err != nil || !ok || !confirmed {
		return heuristic.Window{}, false, err
	}

	w, err := ParseWindow(from, to, selected)
	if err != nil {
		return heuristic.Window{}, false, err
	}
	return w, true, nil
}

// ShowResult prints msg in a bordered box
func (p *HuhPrompter) ShowResult(msg string) {
	fmt.Fprintln(p.out, RenderResult(msg))
}

var resultStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 2)

var titleStyle = lipgloss.NewStyle().Bold(true)

// RenderResult renders the final message of a run
func RenderResult(msg string) string {
	return resultStyle.Render(titleStyle.Render("Element states") + "\n\n" + msg)
}

// SnapshotOptions returns the display labels for ids, in order
func SnapshotOptions(ids []types.SnapshotID) []string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, id.Display())
	}
	return labels
}

// AgentOptions builds the agent multi-select options with every agent
// preselected
func AgentOptions(agents []*types.Agent) ([]huh.Option[int], []int) {
	options := make([]huh.Option[int], 0, len(agents))
	selected := make([]int, 0, len(agents))
	for _, a := range agents {
		options = append(options, huh.NewOption(AgentLabel(a), a.ID).Selected(true))
		selected = append(selected, a.ID)
	}
	return options, selected
}

// AgentLabel renders an agent as "name (id)"
func AgentLabel(a *types.Agent) string {
	name := a.Name
	if name == "" {
		name = "agent"
	}
	label := name + " (" + strconv.Itoa(a.ID) + ")"
	if a.IsFailover {
		label += " [failover]"
	}
	return label
}

// ParseWindow parses the window prompt answers
func ParseWindow(from, to string, agentIDs []int) (heuristic.Window, error) {
	start, err := time.ParseInLocation(WindowLayout, from, time.Local)
	if err != nil {
		return heuristic.Window{}, fmt.Errorf("invalid start %q: expected %s", from, WindowLayout)
	}
	end, err := time.ParseInLocation(WindowLayout, to, time.Local)
	if err != nil {
		return heuristic.Window{}, fmt.Errorf("invalid end %q: expected %s", to, WindowLayout)
	}

	w := heuristic.NewWindow(start, end, agentIDs...)
	if err := w.Validate(); err != nil {
		return heuristic.Window{}, err
	}
	return w, nil
}

func validateTime(s string) error {
	if _, err := time.ParseInLocation(WindowLayout, s, time.Local); err != nil {
		return fmt.Errorf("expected %s", WindowLayout)
	}
	return nil
}
