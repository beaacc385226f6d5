package args

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/markis/gh-transcript/internal/config"
	"github.com/spf13/cobra"
)

// ErrHelp is returned when only help output was requested.
var ErrHelp = errors.New("help requested")

// Action selects what the program does after parsing.
type Action int

const (
	ActionAsk Action = iota
	ActionHistoryList
	ActionHistoryShow
)

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Action       Action
	Prompts      []string
	Model        string
	Command      string
	UsePlainText bool
	Stop         []string
	Snapshots    bool
	Debug        bool
	NoHistory    bool
	HistoryID    string
	HistoryLimit int
}

// Prompt joins the collected prompts into the message sent to the model.
func (a Arguments) Prompt() string {
	return strings.Join(a.Prompts, "\n\n")
}

// ParseArgs parses command-line arguments and stdin input, returning an Arguments struct.
// It uses Cobra to handle commands and flags, allowing for both predefined commands and direct prompts.
func ParseArgs(ctx context.Context, cfg config.Config) (Arguments, error) {
	var stdin io.Reader
	if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		stdin = os.Stdin
	}
	return parse(ctx, cfg, os.Args[1:], stdin)
}

func parse(ctx context.Context, cfg config.Config, argv []string, stdin io.Reader) (Arguments, error) {
	args := Arguments{}
	ran := false
	if argv == nil {
		argv = []string{}
	}

	rootCmd := &cobra.Command{
		Use:   "gh-transcript [command] [flags] [prompt]",
		Short: "Stream GitHub Copilot answers and keep clean transcripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			ran = true
			// Handle direct prompts (when no command is specified)
			if len(cmdArgs) > 0 {
				args.Prompts = append(args.Prompts, cmdArgs[0])
			}
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&args.Model, "model", cfg.Model, "The AI model to use")
	flags.BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	flags.StringArrayVar(&args.Stop, "stop", cfg.Stream.StopSequences, "Stop the answer at this literal (repeatable)")
	flags.BoolVar(&args.Snapshots, "snapshots", cfg.Stream.Snapshots, "Treat streamed content as cumulative snapshots")
	flags.BoolVar(&args.Debug, "debug", false, "Log debug output to stderr")
	flags.BoolVar(&args.NoHistory, "no-history", !cfg.History.Enabled, "Do not store this turn")

	// Add predefined commands
	for name, prompt := range cfg.Prompts {
		cmd := &cobra.Command{
			Use:   name + " [input]",
			Short: summarizePrompt(prompt.Prompt),
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, cmdArgs []string) error {
				ran = true
				args.Command = name
				if len(cmdArgs) > 0 {
					args.Prompts = append(args.Prompts, cmdArgs[0])
				}
				args.Prompts = append(args.Prompts, prompt.Prompt)
				if prompt.Model != "" && !cmd.Flags().Changed("model") {
					args.Model = prompt.Model
				}
				return nil
			},
		}
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newHistoryCmd(&args, &ran))

	// Read from stdin if available
	if stdin != nil {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max buffer
		var buf strings.Builder
		for scanner.Scan() {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
		if err := scanner.Err(); err != nil {
			return Arguments{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		if prompt := strings.TrimSpace(buf.String()); prompt != "" {
			args.Prompts = append(args.Prompts, prompt)
		}
	}

	// Execute the command
	rootCmd.SetArgs(argv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return Arguments{}, err
	}
	if !ran {
		return Arguments{}, ErrHelp
	}

	if args.Action == ActionAsk && len(args.Prompts) == 0 {
		return Arguments{}, errors.New("no prompt provided")
	}

	return args, nil
}

func newHistoryCmd(args *Arguments, ran *bool) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List or show stored transcripts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*ran = true
			args.Action = ActionHistoryList
			return nil
		},
	}
	listCmd.Flags().IntVar(&args.HistoryLimit, "limit", 20, "Maximum number of turns to list (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the transcript of a stored turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			*ran = true
			args.Action = ActionHistoryShow
			args.HistoryID = cmdArgs[0]
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return true
		}
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}

func summarizePrompt(prompt string) string {
	// Trim and limit the length of the prompt summary
	summary := strings.TrimSpace(prompt)
	if len(summary) > 60 {
		summary = summary[:57] + "..."
	}
	return summary
}
