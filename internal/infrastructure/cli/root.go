package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/aicmd-go/internal/app"
	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/cli/commands"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, opts.Verbose)
	if err != nil {
		return nil, err
	}

	queryCmd := newQueryCommand(container)

	root := &cobra.Command{
		Use:   "aicmd [query]",
		Short: "aicmd - natural language to shell commands",
		Long: "aicmd translates natural language into shell commands, caching " +
			"results and learning from your confirmations to skip the API on " +
			"repeated queries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			queryCmd.SetArgs(args)
			return queryCmd.ExecuteContext(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(queryCmd)
	root.AddCommand(commands.NewCacheCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, nil
}

func newQueryCommand(container *app.Container) *cobra.Command {
	var (
		forceTranslate bool
		noClipboard    bool
		noInput        bool
	)

	cmd := &cobra.Command{
		Use:   "query [natural language]",
		Short: "Resolve a natural-language query into a shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interaction := container.Config.Interaction
			if noInput {
				interaction.Enabled = false
			}
			return runQuery(cmd.Context(), container, runOptions{
				query:          strings.Join(args, " "),
				forceTranslate: forceTranslate,
				noClipboard:    noClipboard,
				prompter:       NewPrompter(os.Stdin, cmd.OutOrStdout(), interaction),
				renderer:       NewRenderer(cmd.OutOrStdout(), interaction.NoColor),
				clipboard:      NewClipboard(),
			})
		},
	}

	cmd.Flags().BoolVarP(&forceTranslate, "force-translate", "f", false, "Skip the cache and call the translation API directly")
	cmd.Flags().BoolVar(&noClipboard, "no-clipboard", false, "Do not copy the resulting command to the clipboard")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "Never prompt; print the command and exit")
	return cmd
}

type runOptions struct {
	query          string
	forceTranslate bool
	noClipboard    bool
	prompter       ports.ConfirmationPrompter
	renderer       *Renderer
	clipboard      ports.Clipboard
}

// runQuery drives one full decision cycle: decide, present, collect
// feedback, copy. AutoUse counts as an implicit confirmation; a timed-out
// prompt records nothing.
func runQuery(ctx context.Context, container *app.Container, opts runOptions) error {
	svc := container.DecisionService

	var (
		decision domain.Decision
		err      error
	)
	if opts.forceTranslate {
		decision, err = svc.Retranslate(ctx, opts.query)
	} else {
		decision, err = svc.Decide(ctx, opts.query)
	}
	if err != nil {
		return err
	}

	switch decision.Action {
	case domain.ActionAutoUse:
		opts.renderer.RenderDecision(decision)
		svc.Feedback(ctx, decision, domain.ResultConfirmed)
		copyToClipboard(container, opts, decision.Command)

	case domain.ActionConfirm:
		if !opts.prompter.Enabled() {
			opts.renderer.RenderDecision(decision)
			return nil
		}
		result, perr := opts.prompter.Confirm(
			decision.Command, decision.Source, decision.Confidence, decision.Similarity)
		if perr != nil {
			return perr
		}
		svc.Feedback(ctx, decision, result)
		if result == domain.ResultConfirmed {
			copyToClipboard(container, opts, decision.Command)
		} else if result == domain.ResultRejected {
			return retranslate(ctx, container, opts)
		}

	case domain.ActionTranslate:
		opts.renderer.RenderDecision(decision)
		// Dangerous commands stay out of the clipboard unless the user
		// explicitly confirmed them.
		if !decision.Risk.DisableAutoCopy {
			copyToClipboard(container, opts, decision.Command)
		}
	}
	return nil
}

// retranslate forces a fresh API call after the user rejected a cached
// command; the rejection has already been recorded.
func retranslate(ctx context.Context, container *app.Container, opts runOptions) error {
	decision, err := container.DecisionService.Retranslate(ctx, opts.query)
	if err != nil {
		return err
	}
	opts.renderer.RenderDecision(decision)
	if !decision.Risk.DisableAutoCopy {
		copyToClipboard(container, opts, decision.Command)
	}
	return nil
}

func copyToClipboard(container *app.Container, opts runOptions, command string) {
	if opts.noClipboard || opts.clipboard == nil || !opts.clipboard.Enabled() {
		return
	}
	if err := opts.clipboard.Copy(command); err != nil {
		container.Logger.Warn("clipboard copy failed", map[string]interface{}{"error": err.Error()})
		return
	}
	opts.renderer.RenderCopied()
}
