package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ers/ers/internal/config"
	"github.com/ers/ers/internal/domain/facility"
	"github.com/ers/ers/internal/domain/patient"
	"github.com/ers/ers/internal/domain/referral"
	"github.com/ers/ers/internal/domain/user"
	"github.com/ers/ers/internal/platform/auth"
	"github.com/ers/ers/internal/platform/db"
	"github.com/ers/ers/internal/platform/middleware"
	"github.com/ers/ers/internal/platform/ws"
	"github.com/ers/ers/internal/triage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ers-server",
		Short: "Emergency Referral API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the referral API server",
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

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed demo facilities and users",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			return runSeed(ctx, pool)
		},
	}
}

func runSeed(ctx context.Context, pool *pgxpool.Pool) error {
	facilityRepo := facility.NewRepoPG(pool)
	userRepo := user.NewRepoPG(pool)

	existing, _, err := facilityRepo.List(ctx, 1, 0)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Println("Facilities already seeded, skipping.")
		return nil
	}

	str := func(s string) *string { return &s }
	facilities := []*facility.Facility{
		{Name: "Centre de Santé Ibn Sina", Type: facility.TypeClinic, Address: str("123 Avenue Mohammed V"), City: str("Casablanca"), Phone: str("+212 522-123456")},
		{Name: "Centre de Santé Al Kindi", Type: facility.TypeClinic, Address: str("456 Boulevard Zerktouni"), City: str("Casablanca"), Phone: str("+212 522-234567")},
		{Name: "CHU Ibn Rochd", Type: facility.TypeHospital, Address: str("789 Boulevard de la Corniche"), City: str("Casablanca"), Phone: str("+212 522-345678")},
		{Name: "CHU Mohammed VI", Type: facility.TypeHospital, Address: str("321 Avenue Allal Ben Abdellah"), City: str("Rabat"), Phone: str("+212 537-123456")},
	}
	for _, f := range facilities {
		if err := facilityRepo.Create(ctx, f); err != nil {
			return fmt.Errorf("seed facility %s: %w", f.Name, err)
		}
	}
	fmt.Printf("Seeded %d facilities.\n", len(facilities))

	clinic, hospital := facilities[0], facilities[2]

	nurseHash, err := auth.HashPassword("nurse-demo-123")
	if err != nil {
		return err
	}
	doctorHash, err := auth.HashPassword("doctor-demo-123")
	if err != nil {
		return err
	}

	users := []*user.User{
		{Email: "nurse1@demo.com", PasswordHash: nurseHash, FullName: "Fatima Alami", Role: user.RoleNurse, FacilityID: &clinic.ID, Active: true},
		{Email: "doctor1@demo.com", PasswordHash: doctorHash, FullName: "Dr. Ahmed Benali", Role: user.RoleDoctor, FacilityID: &hospital.ID, Active: true},
	}
	for _, u := range users {
		if err := userRepo.Create(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	fmt.Printf("Seeded %d demo users.\n", len(users))
	fmt.Println("Demo credentials:")
	fmt.Println("  Nurse:  nurse1@demo.com / nurse-demo-123")
	fmt.Println("  Doctor: doctor1@demo.com / doctor-demo-123")
	return nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsProduction() {
		logger = logger.Level(zerolog.InfoLevel)
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
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Websocket hub
	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub)
	wsHandler.RegisterRoutes(e)

	// Repositories
	facilityRepo := facility.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	referralRepo := referral.NewRepoPG(pool)
	userRepo := user.NewRepoPG(pool)

	// Services
	policy := triage.DefaultPolicy()
	if cfg.TriageSpO2Cutoff > 0 {
		policy.CriticalOxygenBelow = cfg.TriageSpO2Cutoff
	}
	evaluator := triage.NewEvaluator(policy)

	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	selector := facility.NewFirstSelector(facilityRepo)

	facilitySvc := facility.NewService(facilityRepo)
	referralSvc := referral.NewService(referralRepo, facilityRepo, selector, hub, logger)
	patientSvc := patient.NewService(patientRepo, facilityRepo, evaluator, referralSvc, logger)
	referralSvc.SetPatientSource(patientSvc)
	userSvc := user.NewService(userRepo, facilityRepo, issuer)

	userHandler := user.NewHandler(userSvc)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Public routes: login and registration
	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))
	userHandler.RegisterPublicRoutes(public)

	// Authenticated API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret)}))
	}

	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	userHandler.RegisterRoutes(apiV1)
	facility.NewHandler(facilitySvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	referral.NewHandler(referralSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
