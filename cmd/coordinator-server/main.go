package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bvquist1400/study-coordinator-pro/internal/config"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/dosing"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/labkit"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/study"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/visit"
	"github.com/bvquist1400/study-coordinator-pro/internal/platform/auth"
	"github.com/bvquist1400/study-coordinator-pro/internal/platform/db"
	"github.com/bvquist1400/study-coordinator-pro/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coordinator-server",
		Short: "Clinical trial coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recomputeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// recomputeCmd runs the lab kit recommendation engine once from the command
// line, either for a single study or as a full sweep. Useful for cron jobs
// that can reach the database but not the HTTP API.
func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute lab kit recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			studyFlag, _ := cmd.Flags().GetString("study")
			daysAhead, _ := cmd.Flags().GetInt("days-ahead")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if daysAhead <= 0 {
				daysAhead = cfg.RecomputeDaysAhead
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			labkitSvc := buildLabKitService(pool)

			if studyFlag != "" {
				studyID, err := uuid.Parse(studyFlag)
				if err != nil {
					return fmt.Errorf("invalid study id: %w", err)
				}
				result, err := labkitSvc.Recompute(ctx, studyID, daysAhead)
				if err != nil {
					return err
				}
				fmt.Printf("Study %s: %d created, %d updated, %d expired, %d kits expired.\n",
					studyID, result.Created, result.Updated, result.Expired, result.KitsExpired)
				return nil
			}

			batch, err := labkitSvc.RecomputeAll(ctx, daysAhead, cfg.RecomputeStudyStatuses)
			if err != nil {
				return err
			}
			fmt.Printf("Processed %d studies (%d failures): %d created, %d updated, %d expired.\n",
				batch.Processed, batch.Failures, batch.Totals.Created, batch.Totals.Updated, batch.Totals.Expired)
			for _, r := range batch.Results {
				if r.Error != "" {
					fmt.Printf("  FAILED %s: %s\n", r.StudyID, r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("study", "", "Recompute a single study by id")
	cmd.Flags().Int("days-ahead", 0, "Forecast horizon in days (default from config)")
	return cmd
}

// buildLabKitService wires the recommendation engine with its repositories
// and the cross-domain services it reads from.
func buildLabKitService(pool *pgxpool.Pool) *labkit.Service {
	studySvc := study.NewService(study.NewStudyRepoPG(pool), study.NewSubjectRepoPG(pool))
	visitSvc := visit.NewService(
		visit.NewTemplateRepoPG(pool),
		visit.NewSectionRepoPG(pool),
		visit.NewVisitRepoPG(pool),
		visit.NewReferenceRepoPG(pool),
	)
	dosingSvc := dosing.NewService(dosing.NewDrugRepoPG(pool), dosing.NewCycleRepoPG(pool))
	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	return labkit.NewService(
		labkit.NewKitRepoPG(pool),
		labkit.NewRequirementRepoPG(pool),
		labkit.NewRecommendationRepoPG(pool),
		visitSvc,
		dosingSvc,
		studySvc,
		txRunner,
	)
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	zlog.Logger = logger

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// API group with user authentication
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Jobs group authenticated by the pre-shared job key, for schedulers and
	// cron triggers rather than user sessions.
	jobs := e.Group("/api/v1/jobs", auth.JobKeyMiddleware(cfg.JobAPIKey))

	// -- Register Domain Handlers --

	studyRepo := study.NewStudyRepoPG(pool)
	subjectRepo := study.NewSubjectRepoPG(pool)
	studySvc := study.NewService(studyRepo, subjectRepo)
	study.NewHandler(studySvc).RegisterRoutes(apiV1)

	templateRepo := visit.NewTemplateRepoPG(pool)
	sectionRepo := visit.NewSectionRepoPG(pool)
	visitRepo := visit.NewVisitRepoPG(pool)
	referenceRepo := visit.NewReferenceRepoPG(pool)
	visitSvc := visit.NewService(templateRepo, sectionRepo, visitRepo, referenceRepo)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)

	drugRepo := dosing.NewDrugRepoPG(pool)
	cycleRepo := dosing.NewCycleRepoPG(pool)
	dosingSvc := dosing.NewService(drugRepo, cycleRepo)
	dosing.NewHandler(dosingSvc).RegisterRoutes(apiV1)

	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	labkitSvc := labkit.NewService(
		labkit.NewKitRepoPG(pool),
		labkit.NewRequirementRepoPG(pool),
		labkit.NewRecommendationRepoPG(pool),
		visitSvc,
		dosingSvc,
		studySvc,
		txRunner,
	)
	labkitHandler := labkit.NewHandler(labkitSvc, cfg.RecomputeDaysAhead)
	labkitHandler.RegisterRoutes(apiV1)
	labkitHandler.RegisterJobRoutes(jobs)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
