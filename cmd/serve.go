package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/agent"
	"github.com/Bekzhanizb/LifeQuestBackend/auth"
	"github.com/Bekzhanizb/LifeQuestBackend/cache"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/chat"
	"github.com/Bekzhanizb/LifeQuestBackend/config"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/handlers"
	"github.com/Bekzhanizb/LifeQuestBackend/llm"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
	"github.com/Bekzhanizb/LifeQuestBackend/routes"
	"github.com/Bekzhanizb/LifeQuestBackend/services"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(conn)
			defer utils.Logger.Sync()
			if port != "" {
				cfg.Port = port
			}

			utils.InitMetrics()
			utils.Logger.Info("starting_application")

			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			if _, err := db.SeedShop(conn); err != nil {
				return fmt.Errorf("seeding shop: %w", err)
			}

			table, err := rewards.LoadYAML(cfg.RewardTablePath)
			if err != nil {
				return fmt.Errorf("loading reward table: %w", err)
			}

			redisStore := connectCache(cfg)
			defer redisStore.Close()

			h, err := buildHandler(cfg, db.NewStore(conn), table, redisStore)
			if err != nil {
				return err
			}

			if !cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			signer := utils.NewSigner(cfg.JWTSecret)
			return startServer(cfg, routes.Setup(cfg, h, signer, redisStore))
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

// connectCache returns nil when Redis is disabled or unreachable, which
// turns caching and rate limiting off.
func connectCache(cfg config.Config) *cache.Store {
	if !cfg.Redis.Enabled {
		utils.Logger.Info("redis_disabled")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := cache.Connect(ctx, cfg.Redis.Addr(), utils.Logger)
	if err != nil {
		utils.Logger.Warn("redis_unavailable_running_without_cache", zap.Error(err))
		return nil
	}
	return store
}

func buildHandler(cfg config.Config, store *db.Store, table rewards.Table, redisStore *cache.Store) (*handlers.Handler, error) {
	model := llm.NewGeminiClient(llm.FromAppConfig(cfg.Gemini), llm.NewZapObserver(utils.Logger))
	if cfg.Gemini.APIKey == "" {
		utils.Logger.Warn("gemini_api_key_missing")
	}

	oauthCfg := auth.OAuthConfig(cfg.Google)
	if oauthCfg == nil {
		utils.Logger.Warn("google_oauth_not_configured")
	}
	calendars := calendar.NewGoogleProvider(oauthCfg, store)
	chatSvc := chat.NewService(model)

	router, err := agent.NewRouter(
		agent.NewLLMClassifier(model),
		cfg.ConfidenceThreshold,
		agent.NewCalendarSpecialist(calendars),
		agent.NewSyllabusSpecialist(model, cfg.UploadDir, cfg.AssignmentsYear),
		agent.NewUnhandledSpecialist(chatSvc),
	)
	if err != nil {
		return nil, fmt.Errorf("building agent router: %w", err)
	}

	return &handlers.Handler{
		Game:      services.NewGamificationService(store, table),
		Router:    router,
		Chat:      chatSvc,
		Calendars: calendars,
		Auth:      auth.NewGoogleAuth(oauthCfg, utils.NewSigner(cfg.JWTSecret), store),
		Cache:     redisStore,
		UploadDir: cfg.UploadDir,
	}, nil
}

func startServer(cfg config.Config, router *gin.Engine) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	utils.Logger.Info("starting_http_server", zap.String("port", cfg.Port))
	printBanner(cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		utils.Logger.Error("http_server_failed", zap.Error(err))
		return err
	case <-quit:
	}

	utils.Logger.Info("shutting_down_server")
	color.Yellow("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error("server_forced_shutdown", zap.Error(err))
		return err
	}

	utils.Logger.Info("server_stopped")
	color.Green("Server stopped gracefully")
	return nil
}

func printBanner(port string) {
	title := color.New(color.FgCyan, color.Bold)
	title.Println("\n================================")
	title.Println("   LifeQuest Backend Started")
	title.Println("================================")
	fmt.Printf("   Server:  http://localhost:%s\n", port)
	fmt.Printf("   Metrics: http://localhost:%s/metrics\n", port)
	fmt.Printf("   Health:  http://localhost:%s/health\n", port)
	title.Println("================================")
}
