package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/internal/adapters/database"
	"github.com/selivandex/stock-qa-bot/internal/app"
	"github.com/selivandex/stock-qa-bot/internal/conversation"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

var cfg *config.Config

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stockqa",
	Short:         "Korean stock news Q&A from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level, _ := cmd.Flags().GetString("log-level")
		if err := logger.Init(level, cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "console log level (debug, info, warn, error)")

	analyzeCmd.Flags().IntP("days", "d", 0, "news window in days (default from RAG_DEFAULT_DAYS)")
	summaryCmd.Flags().IntP("days", "d", 0, "news window in days (default from RAG_DEFAULT_DAYS)")
	migrateCmd.Flags().Bool("down", false, "roll back the last migration instead of applying")
	migrateCmd.Flags().String("target", "postgres", "database to migrate (postgres, clickhouse)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(migrateCmd)
}

// --- Analyze Command (interactive) ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [company]",
	Short: "Collect news and metrics for a company and start a Q&A session",
	Long: `Collect recent news and financial metrics for a company, then answer
questions about it. Inside the session:
  :summary  print the company report
  :news     list collected news
  :quit     leave`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		days, _ := cmd.Flags().GetInt("days")

		application, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer application.Close(context.Background())

		session, err := startSession(ctx, cmd.OutOrStdout(), application, strings.Join(args, " "), days)
		if err != nil {
			return err
		}

		return repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), application, session)
	},
}

// --- Summary Command ---

var summaryCmd = &cobra.Command{
	Use:   "summary [company]",
	Short: "Print a one-shot company report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		days, _ := cmd.Flags().GetInt("days")

		application, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer application.Close(context.Background())

		session, err := startSession(ctx, cmd.OutOrStdout(), application, strings.Join(args, " "), days)
		if err != nil {
			return err
		}
		return printSummary(ctx, cmd.OutOrStdout(), application, session)
	},
}

// --- Migrate Command ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		down, _ := cmd.Flags().GetBool("down")
		target, _ := cmd.Flags().GetString("target")

		var (
			db   *database.DB
			path string
			err  error
		)
		switch target {
		case "postgres":
			db, err = database.New(ctx, &cfg.Database)
			path = cfg.Database.MigrationsPath
		case "clickhouse":
			db, err = database.NewClickHouse(ctx, &cfg.ClickHouse)
			path = cfg.ClickHouse.MigrationsPath
		default:
			return fmt.Errorf("unknown migration target %q", target)
		}
		if err != nil {
			return err
		}
		defer db.Close()

		if down {
			if err := db.RollbackMigration(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "⏪ rolled back last %s migration\n", target)
			return nil
		}

		if err := db.RunMigrations(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s migrations applied\n", target)
		return nil
	},
}

func startSession(ctx context.Context, out io.Writer, application *app.App, company string, days int) (*conversation.Session, error) {
	days = cfg.RAG.ClampDays(days)
	fmt.Fprintf(out, "🔍 %s 최근 %d일 뉴스와 재무 지표를 수집하고 있습니다...\n", company, days)

	buildCtx, cancel := context.WithTimeout(ctx, cfg.RAG.BuildTimeout)
	defer cancel()

	session, err := application.Engine.StartSession(buildCtx, company, days)
	if err != nil {
		return nil, errors.New(conversation.UserMessage(err))
	}

	report := session.Report()
	text, err := application.Templates.ExecuteTemplate("session_ready.tmpl", map[string]any{
		"Company":          session.Company,
		"Ticker":           session.Ticker,
		"Days":             session.DayWindow,
		"NewsKept":         report.NewsKept,
		"NewsFetched":      report.NewsFetched,
		"NewsSuppressed":   report.NewsSuppressed,
		"MetricsAvailable": report.MetricsAvailable,
		"Warnings":         sourceWarnings(report),
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, plain(text))
	return session, nil
}

func repl(ctx context.Context, in io.Reader, out io.Writer, application *app.App, session *conversation.Session) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n❓ ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case ":quit", ":q", "exit":
			return nil
		case ":summary":
			if err := printSummary(ctx, out, application, session); err != nil {
				return err
			}
			continue
		case ":news":
			for i, item := range session.News() {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, item.Title, item.Link)
			}
			continue
		}

		answer, err := session.Ask(ctx, line)
		if err != nil {
			fmt.Fprintln(out, conversation.UserMessage(err))
			continue
		}

		text, err := application.Templates.ExecuteTemplate("answer.tmpl", map[string]any{
			"Text":    answer.Text,
			"Sources": answer.CitedSources,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, plain(text))

		if ctx.Err() != nil {
			return nil
		}
	}
}

func printSummary(ctx context.Context, out io.Writer, application *app.App, session *conversation.Session) error {
	report := application.Reports.Generate(ctx, session.Record(), session.News())
	text, err := application.Reports.Render(report)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, plain(text))
	return nil
}

func sourceWarnings(report conversation.BuildReport) []string {
	var warnings []string
	if report.NewsErr != nil {
		warnings = append(warnings, "뉴스를 가져오지 못했습니다.")
	}
	if report.MetricsErr != nil {
		warnings = append(warnings, "재무 지표를 가져오지 못했습니다.")
	}
	return warnings
}

// plain strips the Telegram HTML markup from rendered templates
func plain(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
