// Package main is the entry point for the secretary service, a chat
// front-end that lets clinicians converse with a medical secretary
// assistant backed by an LLM and a tool-running agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clinvoy/secretary/internal/agent"
	"github.com/clinvoy/secretary/internal/attach"
	"github.com/clinvoy/secretary/internal/config"
	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/llm"
	"github.com/clinvoy/secretary/internal/router"
	"github.com/clinvoy/secretary/internal/secretary"
	"github.com/clinvoy/secretary/internal/server"
	"github.com/clinvoy/secretary/internal/tools"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "secretary",
		Short: "Secretary - medical assistant chat service",
		Long: `Secretary is a chat service for clinicians. It routes each message
through a secretary assistant that either answers directly or delegates
to a tool-running agent (web search, image classification), then serves
the result over HTTP.`,
		PersistentPreRunE: initLogging,
		RunE:              runServe,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "secretary.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("secretary %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine, environment variables still apply.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromPath(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !verbose {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	provider, err := llm.NewProvider(cfg.LLM.ToFactory())
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	model := cfg.LLM.Providers[cfg.LLM.DefaultProvider].Model

	store, err := convo.NewStore(cfg.Conversations.Capacity)
	if err != nil {
		return fmt.Errorf("create conversation store: %w", err)
	}

	attachments, err := attach.NewHandler(cfg.Server.UploadDir)
	if err != nil {
		return fmt.Errorf("create attachment handler: %w", err)
	}

	searchKey := cfg.Search.APIKey
	if searchKey == "" {
		searchKey = os.Getenv("TAVILY_API_KEY")
	}

	executor := tools.NewExecutor()
	if err := executor.Register(tools.NewWebSearchTool(tools.WithAPIKey(searchKey))); err != nil {
		return fmt.Errorf("register websearch tool: %w", err)
	}
	classifierOpts := []tools.ClassifierOption{tools.WithSpaceID(cfg.Classifier.SpaceID)}
	if cfg.Classifier.Endpoint != "" {
		classifierOpts = append(classifierOpts, tools.WithClassifierEndpoint(cfg.Classifier.Endpoint))
	}
	if err := executor.Register(tools.NewClassifierTool(classifierOpts...)); err != nil {
		return fmt.Errorf("register classifier tool: %w", err)
	}

	toolAgent := agent.New(llm.NewAgentAdapter(provider, model), executor, &agent.Config{
		MaxSteps: cfg.Agent.MaxSteps,
	})

	rt := router.New(store, attachments, secretary.NewClient(provider, model), router.NewBridge(toolAgent))

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		UploadDir:      cfg.Server.UploadDir,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, rt, attachments)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("provider", provider.Name()).
		Str("model", model).
		Str("addr", cfg.Server.Addr).
		Msg("starting secretary")

	return srv.ListenAndServe(ctx)
}
