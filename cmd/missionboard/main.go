// @title			Mission Board API
// @version		1.0
// @description	Coordination board for agent teams: kanban tasks, comments, mentions, pings and stuck-task alerts.
// @BasePath		/api/v1

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mtlprog/missionboard/internal/config"
	"github.com/mtlprog/missionboard/internal/database"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/handler"
	"github.com/mtlprog/missionboard/internal/logger"
	"github.com/mtlprog/missionboard/internal/repository"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	app := &cli.App{
		Name:  "missionboard",
		Usage: "Coordination board for agent teams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringSliceFlag{
						Name:    "cors-origin",
						Usage:   "Allowed CORS origins (repeatable)",
						EnvVars: []string{"CORS_ORIGINS"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "detect-stuck",
				Usage:  "Run one stuck-task detector sweep",
				Action: runDetectStuck,
			},
			{
				Name:   "process-notifications",
				Usage:  "Deliver a batch of pending stuck-task alerts",
				Action: runProcessNotifications,
			},
			{
				Name:  "cleanup-notifications",
				Usage: "Delete old sent notifications",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "older-than-hours",
						Value: 24,
						Usage: "Delete sent notifications older than this many hours",
					},
				},
				Action: runCleanupNotifications,
			},
			{
				Name:   "stats",
				Usage:  "Print notification statistics",
				Action: runStats,
			},
			{
				Name:  "seed",
				Usage: "Load agents and tasks from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Seed file path",
						Required: true,
					},
				},
				Action: runSeed,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// connect opens the pool, runs migrations and loads the rule config.
func connect(c *cli.Context) (*database.DB, *config.Rules, error) {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rules, err := config.LoadRules()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	return db, rules, nil
}

func newNotificationService(db *database.DB, rules *config.Rules) *service.NotificationService {
	pool := db.Pool()
	return service.NewNotificationService(
		pool,
		repository.NewTaskRepository(pool),
		repository.NewCollabEventRepository(pool),
		repository.NewNotificationRepository(pool),
		rules,
	)
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	db, rules, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	h := handler.New(db.Pool(), rules)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	corsOptions := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	if origins := c.StringSlice("cors-origin"); len(origins) > 0 {
		corsOptions.AllowedOrigins = origins
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           cors.New(corsOptions).Handler(mux),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runDetectStuck(c *cli.Context) error {
	db, rules, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := newNotificationService(db, rules).DetectStuckTasks(c.Context)
	if err != nil {
		return fmt.Errorf("detector sweep failed: %w", err)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("sweep finished with %d errors: %v", len(result.Errors), result.Errors)
	}

	return nil
}

func runProcessNotifications(c *cli.Context) error {
	db, rules, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := newNotificationService(db, rules).ProcessPending(c.Context)
	if err != nil {
		return fmt.Errorf("processor run failed: %w", err)
	}

	if result.Failed > 0 {
		return fmt.Errorf("processed %d notifications, %d failed: %v",
			result.Processed, result.Failed, result.Errors)
	}

	return nil
}

func runCleanupNotifications(c *cli.Context) error {
	db, rules, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	olderThan := time.Duration(c.Int("older-than-hours")) * time.Hour

	_, err = newNotificationService(db, rules).CleanupOld(c.Context, olderThan)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	return nil
}

func runStats(c *cli.Context) error {
	db, rules, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := newNotificationService(db, rules).Stats(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Println("Notification stats")
	fmt.Printf("  total:    %d\n", stats.Total)
	color.Yellow("  pending:  %d", stats.Pending)
	color.Green("  sent:     %d", stats.Sent)
	color.Red("  failed:   %d", stats.Failed)
	fmt.Printf("  done:     %d\n", stats.DoneAlerts)
	fmt.Printf("  blocked:  %d\n", stats.BlockedAlerts)

	return nil
}

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Agents []struct {
		Name       string `yaml:"name"`
		Role       string `yaml:"role"`
		SessionKey string `yaml:"session_key"`
	} `yaml:"agents"`
	Tasks []struct {
		Title       string   `yaml:"title"`
		Description string   `yaml:"description"`
		Status      string   `yaml:"status"`
		Assignees   []string `yaml:"assignees"`
		ProjectID   *string  `yaml:"project_id"`
		SortOrder   *float64 `yaml:"sort_order"`
	} `yaml:"tasks"`
}

func runSeed(c *cli.Context) error {
	ctx := c.Context

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	db, _, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	agentRepo := repository.NewAgentRepository(db.Pool())
	taskRepo := repository.NewTaskRepository(db.Pool())

	for _, a := range seed.Agents {
		sessionKey := a.SessionKey
		if sessionKey == "" {
			sessionKey = uuid.NewString()
		}

		agent := &domain.Agent{
			Name:       a.Name,
			Role:       a.Role,
			Status:     "idle",
			SessionKey: sessionKey,
		}
		if _, err := agentRepo.Create(ctx, agent); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.Name, err)
		}

		// Issued keys are printed once; there is no way to read them back.
		fmt.Printf("agent %s: session_key=%s\n", agent.Name, sessionKey)
	}

	for _, t := range seed.Tasks {
		task := &domain.Task{
			Title:       t.Title,
			Description: t.Description,
			Status:      domain.TaskStatus(t.Status),
			AssigneeIDs: t.Assignees,
			ProjectID:   t.ProjectID,
			SortOrder:   t.SortOrder,
		}
		if task.Status != "" && !task.Status.IsValid() {
			return fmt.Errorf("seed task %q: invalid status %q", t.Title, t.Status)
		}
		if _, err := taskRepo.Create(ctx, task); err != nil {
			return fmt.Errorf("seed task %q: %w", t.Title, err)
		}
	}

	slog.Info("seed complete",
		"agents", len(seed.Agents),
		"tasks", len(seed.Tasks),
	)

	return nil
}
