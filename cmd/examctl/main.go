package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/config"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/export"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/handlers"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/workers"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/pkg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operator tooling for the exam engine",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	root.AddCommand(migrateCmd(), reapCmd(), leaderboardCmd(), tokenCmd())
	return root
}

// ===== MIGRATE =====

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("up failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrated up successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("down failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrated down successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("version failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %t\n", version, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Mark a version as applied without running it",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version: %w", err)
				}
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forced version to %d\n", v)
				return nil
			}),
		},
	)
	return cmd
}

func withMigrator(run func(cmd *cobra.Command, m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)
		v := viperForCmd(cmd)

		dbURL := v.GetString("database-url")
		if dbURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		m, err := pkg.NewMigrator(dbURL)
		if err != nil {
			return err
		}
		defer m.Close()
		return run(cmd, m, args)
	}
}

// ===== REAP =====

func reapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Force-submit every overdue attempt once and exit",
		Args:  cobra.NoArgs,
		RunE:  runReap,
	}
	cmd.Flags().Int("batch-size", workers.DefaultReaperBatchSize, "Maximum attempts closed in one pass")
	return cmd
}

func runReap(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	engine, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	reaper := workers.NewDeadlineReaper(
		engine.Repos.GetRepository().Attempt(),
		engine.Services.Attempt(),
		engine.Clock,
		slog.Default(),
		engine.Config.Engine.ReaperInterval,
		v.GetInt("batch-size"),
	)
	stats, err := reaper.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

// ===== LEADERBOARD =====

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Inspect and export leaderboards",
	}

	show := &cobra.Command{
		Use:   "show <scope>",
		Short: "Print the current leaderboard of a scope as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runLeaderboardShow,
	}
	show.Flags().Bool("recompute", false, "Recompute the board before printing")

	exp := &cobra.Command{
		Use:   "export <scope>",
		Short: "Write the leaderboard of a scope to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runLeaderboardExport,
	}
	exp.Flags().StringP("output", "o", "", "Output file (defaults to a name derived from the scope)")
	exp.Flags().Bool("recompute", false, "Recompute the board before exporting")

	cmd.AddCommand(show, exp)
	return cmd
}

func loadBoard(cmd *cobra.Command, raw string, recompute bool) (*models.Leaderboard, *pkg.Engine, error) {
	scope, err := models.ParseRankScope(raw)
	if err != nil {
		return nil, nil, err
	}

	engine, err := loadEngine(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	ranking := engine.Services.Ranking()
	var board *models.Leaderboard
	if recompute {
		board, err = ranking.Recompute(cmd.Context(), scope)
	} else {
		board, err = ranking.GetLeaderboard(cmd.Context(), scope)
	}
	if err != nil {
		engine.Close(context.Background())
		return nil, nil, fmt.Errorf("load leaderboard %s: %w", scope, err)
	}
	return board, engine, nil
}

func runLeaderboardShow(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	board, engine, err := loadBoard(cmd, args[0], v.GetBool("recompute"))
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())
	return printJSON(cmd, board)
}

func runLeaderboardExport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	board, engine, err := loadBoard(cmd, args[0], v.GetBool("recompute"))
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	path := v.GetString("output")
	if path == "" {
		path = export.FileName(board)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteLeaderboard(f, board); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("Leaderboard exported", "scope", board.Scope.String(), "entries", len(board.Entries), "path", path)
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// ===== TOKEN =====

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue bearer tokens for AUTH_MODE=jwt deployments",
	}

	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Sign a token for a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenIssue,
	}
	f := issue.Flags()
	f.String("role", string(models.RoleStudent), "Role (student, faculty, admin)")
	f.String("name", "", "Display name")
	f.String("email", "", "Email address")
	f.String("department", "", "Department id used for department rankings")
	f.String("college", "", "College id used for college rankings")
	f.Duration("ttl", 24*time.Hour, "Token lifetime")
	f.String("jwt-secret", "", "Signing secret (defaults to JWT_SECRET)")
	f.String("jwt-issuer", "exam-engine", "Issuer claim (defaults to JWT_ISSUER)")

	cmd.AddCommand(issue)
	return cmd
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)

	secret := v.GetString("jwt-secret")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	role := models.UserRole(strings.ToLower(v.GetString("role")))
	switch role {
	case models.RoleStudent, models.RoleFaculty, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	user := &models.User{
		ID:       args[0],
		FullName: v.GetString("name"),
		Email:    v.GetString("email"),
		Role:     role,
	}
	if dept := v.GetString("department"); dept != "" {
		user.DepartmentID = &dept
	}
	if college := v.GetString("college"); college != "" {
		user.CollegeID = &college
	}

	token, err := handlers.IssueToken(secret, v.GetString("jwt-issuer"), user, v.GetDuration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// ===== HELPERS =====

func loadEngine(ctx context.Context) (*pkg.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return pkg.BuildEngine(ctx, cfg, slog.Default())
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var level slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// viperForCmd binds a command's flags to a fresh viper instance. Flag
// "database-url" falls back to DATABASE_URL, "jwt-secret" to JWT_SECRET and
// so on, so the CLI reads the same environment as the server.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examctl")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examctl")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	}
	return v
}
