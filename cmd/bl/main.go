package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"briefline/internal/agent"
	"briefline/internal/blocker"
	"briefline/internal/config"
	"briefline/internal/db"
	"briefline/internal/events"
	"briefline/internal/history"
	"briefline/internal/migrate"
	"briefline/internal/oracle"
	"briefline/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "bl",
	Short: "Briefline CLI",
	Long: `Briefline turns free-text stand-up messages into structured daily reports,
classifies reported blockers into severity-ranked events, and answers a
leader's analytics questions from locally computed metrics.

The language model only parses and phrases; every number, severity and
repeat flag is computed deterministically on this machine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
	viper.SetEnvPrefix("BRIEFLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("author-id", "local-user", "author identifier")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("author-id", rootCmd.PersistentFlags().Lookup("author-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dailyCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(faqCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(blockersCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(auditCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default briefline.yml and initialize the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				fmt.Printf("Initialized workspace; config at %s\n", path)
				fmt.Println("Set BRIEFLINE_API_KEY in the environment or .env before talking to the oracle.")
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tracker tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskStatusCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var id, title, assignee string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a task for blocker linkage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				t, err := s.AddTask(ctx, history.Task{ID: id, Title: title, AssigneeID: assignee})
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				tasks, err := s.ListTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := newTable("ID", "TITLE", "STATUS", "ASSIGNEE")
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.AssigneeID})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				return s.SetTaskStatus(ctx, args[0], args[1])
			})
		},
	}
	return cmd
}

func dailyCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "daily [message]",
		Short: "Submit a daily stand-up update",
		Long: `Submits a stand-up message and drives the conversation to acceptance:
answers clarification questions interactively, re-prompts on thin updates,
and prints the classified blocker events once the report is accepted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), func(ctx context.Context, r *session.Runner) error {
				conv := session.NewConversation(viper.GetString("author-id"), agent.Role(role))
				message := strings.Join(args, " ")
				reader := bufio.NewReader(os.Stdin)
				if message == "" {
					fmt.Print("Your update: ")
					line, err := reader.ReadString('\n')
					if err != nil && err != io.EOF {
						return err
					}
					message = strings.TrimSpace(line)
				}
				for {
					outcome, err := r.SubmitDaily(ctx, conv, message)
					if err != nil {
						return err
					}
					switch outcome.Kind {
					case session.OutcomeClarify:
						fmt.Println(outcome.Question)
					case session.OutcomeReprompt:
						fmt.Println(outcome.Message)
					case session.OutcomeFailed:
						fmt.Println(outcome.Message)
						return nil
					case session.OutcomeAccepted:
						return printAccepted(outcome)
					}
					fmt.Print("> ")
					line, err := reader.ReadString('\n')
					if err != nil {
						return err
					}
					message = strings.TrimSpace(line)
				}
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "DEV", "author role (DEV or QA)")
	return cmd
}

func printAccepted(outcome session.Outcome) error {
	if viper.GetBool("json") {
		return printJSON(outcome)
	}
	fmt.Println("Report accepted.")
	if len(outcome.Events) == 0 {
		return nil
	}
	tw := newTable("SEVERITY", "TASK", "EXISTS", "REPEAT", "TEXT")
	for _, ev := range outcome.Events {
		tw.AppendRow(table.Row{string(ev.Severity), ev.TaskID, ev.TaskExists, ev.IsRepeat, ev.Text})
	}
	fmt.Println(tw.Render())
	for _, esc := range outcome.Escalations {
		fmt.Printf("ESCALATION [%s] %s (%s)\n", esc.Severity, esc.Text, esc.TaskID)
	}
	return nil
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask an analytics question about the team",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), func(ctx context.Context, r *session.Runner) error {
				report, err := r.AskAnalytics(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(report)
				return nil
			})
		},
	}
}

func faqCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "faq <question...>",
		Short: "Ask a general process question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), func(ctx context.Context, r *session.Runner) error {
				answer, err := r.AskFAQ(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(answer)
				return nil
			})
		},
	}
}

func digestCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Render a personal digest from stored data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), func(ctx context.Context, r *session.Runner) error {
				text, err := r.Digest(ctx, agent.Role(role))
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "DEV", "author role (DEV or QA)")
	return cmd
}

func blockersCmd() *cobra.Command {
	var n int
	var escalationsOnly bool
	cmd := &cobra.Command{
		Use:   "blockers",
		Short: "List recorded blocker events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				if escalationsOnly {
					escs, err := s.ListEscalations(ctx, n)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(escs)
					}
					tw := newTable("ID", "SEVERITY", "TASK", "ROLE", "TEXT")
					for _, e := range escs {
						tw.AppendRow(table.Row{e.ID, string(e.Severity), e.TaskID, e.AuthorRole, e.Text})
					}
					fmt.Println(tw.Render())
					return nil
				}
				evs, err := s.ListEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evs)
				}
				tw := newTable("ID", "SEVERITY", "TASK", "EXISTS", "REPEAT", "ROLE", "TEXT")
				for _, ev := range evs {
					tw.AppendRow(table.Row{ev.ID, string(ev.Severity), ev.TaskID, ev.TaskExists, ev.IsRepeat, ev.AuthorRole, ev.Text})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "number of rows")
	cmd.Flags().BoolVar(&escalationsOnly, "escalations", false, "list escalations instead of events")
	return cmd
}

func classifyCmd() *cobra.Command {
	var file string
	var record bool
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a daily report JSON without calling the oracle",
		Long: `Reads the 'daily' object of a DAILY response from --file or stdin,
classifies its blockers against the stored tasks and blocker history, and
prints the resulting events and escalations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file != "" {
				data, err = os.ReadFile(file)
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}
			var daily agent.DailyReport
			if err := json.Unmarshal(data, &daily); err != nil {
				return fmt.Errorf("parse daily JSON: %w", err)
			}
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				known, err := s.KnownTasks(ctx)
				if err != nil {
					return err
				}
				existing, err := s.ExistingBlockers(ctx)
				if err != nil {
					return err
				}
				evs, escalations := blocker.Classify(daily, known, existing)
				if record {
					if err := s.RecordEvents(ctx, viper.GetString("author-id"), evs); err != nil {
						return err
					}
				}
				return printJSON(map[string]any{
					"events":      evs,
					"escalations": escalations,
				})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "daily JSON file (stdin when empty)")
	cmd.Flags().BoolVar(&record, "record", false, "record the classified events")
	return cmd
}

func auditCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail of state changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s history.Store) error {
				entries, err := events.Recent(ctx, s.DB, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable("TS", "KIND", "ACTOR", "TASK")
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.Kind, e.ActorID, e.TaskID})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "number of rows")
	return cmd
}

// --- helpers ---

func withStore(ctx context.Context, fn func(context.Context, history.Store) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, history.Store{DB: conn})
}

func withRunner(ctx context.Context, fn func(context.Context, *session.Runner) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	apiKey := viper.GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("BRIEFLINE_API_KEY")
	}
	client := oracle.NewChatClient(oracle.Config{
		BaseURL:   cfg.Oracle.BaseURL,
		APIKey:    apiKey,
		Model:     cfg.Oracle.Model,
		Timeout:   cfg.OracleTimeout(),
		MaxTokens: cfg.Oracle.MaxTokens,
	})
	return withStore(ctx, func(ctx context.Context, s history.Store) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()
		r := &session.Runner{
			Oracle:  client,
			History: s,
			Limits:  cfg.Limits,
			Logger:  logger,
		}
		return fn(ctx, r)
	})
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
