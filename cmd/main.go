package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"rag-chatbot/internal/api"
	"rag-chatbot/internal/chat"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	buildIndex := flag.Bool("build-index", false, "Build or load the vector index and exit")
	dryRun := flag.Bool("dry-run", false, "With -build-index, print the parsed chunks instead of embedding them")
	query := flag.String("query", "", "Answer a single question and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setLogLevel(cfg.Log.Level)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log.Debug().Interface("config", redacted(cfg)).Msg("Loaded config")

	ctx := context.Background()

	if *buildIndex && *dryRun {
		printChunks(cfg)
		return
	}

	bunDB := openDatabase(ctx, cfg)
	if bunDB != nil {
		defer bunDB.Close()
	}

	factory := rag.NewFactory(cfg, rag.DefaultProviders(cfg, bunDB))
	apiKey := config.EnvAPIKey()

	switch {
	case *buildIndex:
		if _, err := factory.Build(ctx, apiKey); err != nil {
			log.Fatal().Err(err).Msg("Error building index")
		}
		return
	case *query != "":
		answerQuery(ctx, factory, apiKey, *query)
		return
	}

	serve(cfg, factory, apiKey)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.LLM.Key != "" {
		c.LLM.Key = "***"
	}
	if c.EmbedLLM.Key != "" {
		c.EmbedLLM.Key = "***"
	}
	if c.Database.Password != "" {
		c.Database.Password = "***"
	}
	return c
}

// openDatabase connects to Postgres when the pgvector store is configured.
func openDatabase(ctx context.Context, cfg *config.Config) *bun.DB {
	if cfg.RAG.VectorStore != config.VectorStorePGVector {
		return nil
	}

	sqlDB, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	bunDB := db.NewDB(sqlDB, cfg.Database.Debug)
	if err := db.InitDB(ctx, bunDB); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}
	return bunDB
}

func printChunks(cfg *config.Config) {
	chunks, err := parser.NewParser(&cfg.RAG).ParseDocument(cfg.Document.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
}

func answerQuery(ctx context.Context, factory *rag.Factory, apiKey, query string) {
	pipeline, err := factory.Build(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing RAG system")
	}

	response, err := pipeline.Query(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func serve(cfg *config.Config, factory *rag.Factory, apiKey string) {
	sessions := chat.NewStore(cfg.Session.MaxSessions, chat.Settings{
		DocumentPath: cfg.Document.Path,
		EnvAPIKey:    apiKey,
		Build: func(ctx context.Context, key string) (chat.Answerer, error) {
			pipeline, err := factory.Build(ctx, key)
			if err != nil {
				return nil, err
			}
			return pipeline, nil
		},
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(&cfg.Server, log.Logger, sessions),
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}
	}()

	log.Info().Str("addr", cfg.Server.Addr).Str("document", cfg.Document.Path).Msg("Chat server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Could not start server")
	}
	log.Info().Msg("Server stopped.")
}
