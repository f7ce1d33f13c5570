package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"vibe/internal/app"
	"vibe/internal/runtime"
	"vibe/internal/source"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

const (
	exitUnexpected  = 1
	exitValidation  = 2
	exitEnvironment = 3
	exitFetch       = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		err = classify(err)
		fmt.Fprintln(os.Stderr, err)
		if ex, ok := err.(ExitCoder); ok {
			stop()
			os.Exit(ex.ExitCode())
		}
		stop()
		os.Exit(exitUnexpected)
	}
}

// classify maps an error to the process exit code it should produce.
func classify(err error) error {
	var ex ExitCoder
	if errors.As(err, &ex) {
		return err
	}
	switch {
	case errors.Is(err, app.ErrValidation):
		return &exitError{code: exitValidation, msg: err.Error()}
	case errors.Is(err, runtime.ErrEnvironment):
		return &exitError{code: exitEnvironment, msg: err.Error()}
	case errors.Is(err, source.ErrFetch):
		return &exitError{code: exitFetch, msg: err.Error()}
	default:
		return &exitError{code: exitUnexpected, msg: err.Error()}
	}
}

type globalFlags struct {
	dir        string
	configPath string
	logLevel   string
	jsonOutput bool
}

type serviceFactory func(cmd *cobra.Command) (*app.Service, error)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	newSvc := func(cmd *cobra.Command) (*app.Service, error) {
		return app.New(app.Options{
			Dir:        flags.dir,
			ConfigPath: flags.configPath,
			LogLevel:   flags.logLevel,
			In:         interactiveInput(cmd.InOrStdin()),
			Out:        cmd.OutOrStdout(),
			Err:        cmd.ErrOrStderr(),
		})
	}

	cmd := &cobra.Command{
		Use:           "vibe",
		Short:         "Install and sync agent tools and rules into .opencode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.dir, "dir", "", "project root (default: current directory)")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to vibe settings file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newAddCmd(newSvc, &flags.jsonOutput))
	cmd.AddCommand(newUpdateCmd(newSvc, &flags.jsonOutput))
	cmd.AddCommand(newRemoveCmd(newSvc, &flags.jsonOutput))
	cmd.AddCommand(newListCmd(newSvc, &flags.jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &flags.jsonOutput))
	cmd.AddCommand(newConfigCmd(flags))
	cmd.AddCommand(newVersionCmd(&flags.jsonOutput))
	return cmd
}

// interactiveInput returns in when it is a terminal, nil otherwise.
func interactiveInput(in io.Reader) io.Reader {
	f, ok := in.(*os.File)
	if !ok {
		return in
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return f
}

func withService(newSvc serviceFactory, cmd *cobra.Command, fn func(svc *app.Service) error) error {
	svc, err := newSvc(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func newAddCmd(newSvc serviceFactory, jsonOutput *bool) *cobra.Command {
	var tools, rules []string
	var all bool
	cmd := &cobra.Command{
		Use:     "add <owner/repo | url | path>",
		Aliases: []string{"a", "install"},
		Short:   "Install tools and rule categories from a source repository",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("APP_ADD: repository is required: %w", app.ErrValidation)
			}
			return withService(newSvc, cmd, func(svc *app.Service) error {
				res, err := svc.Add(cmd.Context(), app.AddRequest{Repo: args[0], Tools: tools, Rules: rules, All: all})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return print(cmd.OutOrStdout(), true, res, "")
				}
				out := cmd.OutOrStdout()
				if res.Cancelled {
					fmt.Fprintln(out, "nothing installed")
					return nil
				}
				if n := len(res.Installed.Tools) + len(res.Installed.Rules); n > 0 {
					fmt.Fprintf(out, "installed %d item(s) from %s into %s\n", n, res.Source, svc.Layout.Dir)
					for _, t := range res.Installed.Tools {
						fmt.Fprintf(out, "  tool  %s\n", t)
					}
					for _, r := range res.Installed.Rules {
						fmt.Fprintf(out, "  rules %s\n", r)
					}
				}
				if res.ActivationHint != "" {
					fmt.Fprintf(out, "python tools are ready, activate the environment with:\n  %s\n", res.ActivationHint)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&tools, "tool", nil, "tool to install (repeatable)")
	cmd.Flags().StringArrayVar(&rules, "rule", nil, "rule category to install (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "install every tool and rule category")
	return cmd
}

func newUpdateCmd(newSvc serviceFactory, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "update",
		Aliases: []string{"up", "upgrade"},
		Short:   "Refresh every tracked tool and rule category from its source",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(newSvc, cmd, func(svc *app.Service) error {
				res, err := svc.Update(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return print(cmd.OutOrStdout(), true, res, "")
				}
				out := cmd.OutOrStdout()
				for _, src := range res.Report.Sources {
					if !src.OK() {
						fmt.Fprintf(out, "failed  %s\n", src.Source)
					}
					for _, t := range src.Tools {
						fmt.Fprintf(out, "updated tool %s\n", t)
					}
					for _, r := range src.Rules {
						fmt.Fprintf(out, "updated rules %s\n", r)
					}
				}
				if res.Report.Succeeded > 0 {
					fmt.Fprintf(out, "updated %d local item(s) from %d source(s)\n", res.Report.Succeeded, len(res.Report.Sources)-len(res.Report.Failed()))
				}
				return nil
			})
		},
	}
}

func newRemoveCmd(newSvc serviceFactory, jsonOutput *bool) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove [names...]",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Remove tracked tools and rule categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(newSvc, cmd, func(svc *app.Service) error {
				res, err := svc.Remove(cmd.Context(), args, yes)
				if *jsonOutput && err == nil {
					return print(cmd.OutOrStdout(), true, res, "")
				}
				out := cmd.OutOrStdout()
				for _, t := range res.Removed.Tools {
					fmt.Fprintf(out, "removed tool %s\n", t)
				}
				for _, r := range res.Removed.Rules {
					fmt.Fprintf(out, "removed rules %s\n", r)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newListCmd(newSvc serviceFactory, jsonOutput *bool) *cobra.Command {
	var noSkills bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked tools and rule categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(newSvc, cmd, func(svc *app.Service) error {
				res, err := svc.List(cmd.Context(), !noSkills && !*jsonOutput)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return print(cmd.OutOrStdout(), true, res, "")
				}
				out := cmd.OutOrStdout()
				writeListed(out, "tools", svc.Layout.ToolDir, res.Tools)
				writeListed(out, "rules", svc.Layout.RulesDir, res.Rules)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noSkills, "no-skills", false, "do not list skills from the skills installer")
	return cmd
}

func writeListed(out io.Writer, title, dir string, items []app.ListedItem) {
	fmt.Fprintf(out, "%s (%s):\n", title, dir)
	if len(items) == 0 {
		fmt.Fprintln(out, "  none installed yet")
		return
	}
	for _, it := range items {
		src := it.Source
		if src == "" {
			src = "unknown"
		}
		fmt.Fprintf(out, "  %s (%s)\n", it.Name, src)
	}
}

func newDoctorCmd(newSvc serviceFactory, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Check the workspace, lock file and runtimes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(newSvc, cmd, func(svc *app.Service) error {
				report := svc.RunDoctor(cmd.Context())
				if *jsonOutput {
					return print(cmd.OutOrStdout(), true, report, "")
				}
				out := cmd.OutOrStdout()
				if report.Healthy {
					fmt.Fprintln(out, "healthy")
				} else {
					fmt.Fprintln(out, "unhealthy")
				}
				for _, f := range report.Findings {
					fmt.Fprintf(out, "[%s] %s: %s\n", strings.ToUpper(f.Level), f.Code, f.Message)
				}
				return nil
			})
		},
	}
}

func print(w io.Writer, jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(blob))
		return nil
	}
	if message != "" {
		fmt.Fprintln(w, message)
	}
	return nil
}
