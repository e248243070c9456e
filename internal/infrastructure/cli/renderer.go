package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/doeshing/aicmd-go/internal/domain"
)

// Renderer prints decisions and outcomes in an ASCII-only format.
type Renderer struct {
	out io.Writer
}

// NewRenderer builds a renderer writing to out.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	if noColor {
		color.NoColor = true
	}
	return &Renderer{out: out}
}

// RenderDecision shows where the command came from and how much it is
// trusted. AutoUse results get a single success line; the prompter handles
// the interactive cases itself.
func (r *Renderer) RenderDecision(d domain.Decision) {
	switch d.Action {
	case domain.ActionAutoUse:
		fmt.Fprintf(r.out, "%s %s\n", color.GreenString("[%s]", d.Source), d.Command)
		fmt.Fprintln(r.out, color.New(color.Faint).Sprintf("confidence: %.1f%%", d.Confidence*100))
	case domain.ActionConfirm:
		fmt.Fprintf(r.out, "%s %s\n", color.YellowString("[%s]", d.Source), d.Command)
		fmt.Fprintln(r.out, color.New(color.Faint).Sprintf(
			"confidence: %.1f%%  similarity: %.1f%%", d.Confidence*100, d.Similarity*100))
	case domain.ActionTranslate:
		fmt.Fprintf(r.out, "%s %s\n", color.CyanString("[%s]", d.Source), d.Command)
	}
	r.renderRisk(d.Risk)
}

func (r *Renderer) renderRisk(risk domain.RiskAssessment) {
	if !risk.Dangerous && len(risk.Reasons) == 0 {
		return
	}
	fmt.Fprintf(r.out, "%s\n", color.RedString("Risk: %s", strings.ToUpper(string(risk.Level))))
	for _, reason := range risk.Reasons {
		fmt.Fprintf(r.out, " - %s\n", reason)
	}
}

// RenderCopied confirms the clipboard write.
func (r *Renderer) RenderCopied() {
	fmt.Fprintln(r.out, color.New(color.Faint).Sprint("Copied to clipboard."))
}
