package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	lockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unlockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View renders the wizard.
func (w *Wizard) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Semcraft"))
	b.WriteString("\n\n")
	b.WriteString(w.renderStageBar())
	b.WriteString("\n\n")
	b.WriteString(boxStyle.Render(w.renderStage()))
	b.WriteString("\n")

	if w.statusMsg != "" {
		b.WriteString(statusStyle.Render(w.statusMsg))
		b.WriteString("\n")
	}
	if w.errMsg != "" {
		b.WriteString(errorStyle.Render(w.errMsg))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(w.helpLine()))
	return b.String()
}

func (w *Wizard) renderStageBar() string {
	parts := make([]string, 0, len(workflow.Stages))
	for i, stage := range workflow.Stages {
		label := fmt.Sprintf("%d. %s", stage.Ordinal, stage.Title)
		switch {
		case i == w.stageIdx:
			parts = append(parts, activeStyle.Render("["+label+"]"))
		case w.unlocked(i):
			parts = append(parts, unlockedStyle.Render(label))
		default:
			parts = append(parts, lockedStyle.Render(label+" 🔒"))
		}
	}
	return strings.Join(parts, "  ")
}

func (w *Wizard) renderStage() string {
	switch w.stage().ID {
	case workflow.StageGettingStarted:
		return "Connection settings verified.\n\nPress enter to continue."
	case workflow.StageStore:
		return w.renderStore()
	case workflow.StageCreate:
		return w.renderCreate()
	case workflow.StageEdit:
		return w.renderEdit()
	case workflow.StageValidate:
		return w.renderValidate()
	case workflow.StageUpload:
		return w.renderUpload()
	}
	return ""
}

func (w *Wizard) renderStore() string {
	var b strings.Builder
	b.WriteString("Where should the finished model live?\n\n")
	labels := []string{"Database", "Schema  ", "Stage   "}
	for i := range w.destInputs {
		b.WriteString(fmt.Sprintf("%s %s\n", labels[i], w.destInputs[i].View()))
	}
	b.WriteString("\nAll three parts are required.")
	return b.String()
}

func (w *Wizard) renderCreate() string {
	if w.importing {
		return fmt.Sprintf("Import an existing model YAML.\n\nPath %s\n\nesc to cancel", w.pathInput.View())
	}
	var b strings.Builder
	b.WriteString("Name the new model, or press i to import a YAML file.\n\n")
	b.WriteString("Name " + w.nameInput.View())
	if draft := w.session.Draft(); draft != nil && draft.Exists() {
		b.WriteString(fmt.Sprintf("\n\nCurrent draft: %q (%d tables)", draft.Name, len(draft.Tables)))
	}
	return b.String()
}

func (w *Wizard) renderEdit() string {
	draft := w.session.Draft()
	if draft == nil || !draft.Exists() {
		return "No draft yet."
	}

	var b strings.Builder
	if w.curating {
		b.WriteString("Refining draft...\n\n")
	}
	text, err := model.ToYAML(draft)
	if err != nil {
		return err.Error()
	}
	b.WriteString(clampLines(text, 20))
	b.WriteString("\nPress c to refine with curation, enter to continue.")
	return b.String()
}

func (w *Wizard) renderValidate() string {
	if w.session.Validated() {
		return "Draft is validated.\n\nPress enter to re-validate, or move on to Upload."
	}
	return "Validate the draft and stash a temporary copy on the stage.\n\nPress enter to validate."
}

func (w *Wizard) renderUpload() string {
	draft := w.session.Draft()
	dest := w.session.Destination()
	if draft == nil || dest == nil {
		return "Upload is locked."
	}
	return fmt.Sprintf("Upload %s to %s.\n\nPress enter to upload.", draft.FileName(), dest)
}

func (w *Wizard) helpLine() string {
	if w.stage().ID == workflow.StageStore {
		return "tab: next field · enter: save · ←/→: stages · ctrl+c: quit"
	}
	return "←/→: stages · enter: confirm · q: quit"
}

// clampLines truncates text to at most n lines.
func clampLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-n)
}
