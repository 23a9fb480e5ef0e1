package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rustlegion/ticket-bot/internal/audit"
	"github.com/rustlegion/ticket-bot/internal/bot"
	"github.com/rustlegion/ticket-bot/internal/config"
	"github.com/rustlegion/ticket-bot/internal/database"
	"github.com/rustlegion/ticket-bot/internal/handler"
	"github.com/rustlegion/ticket-bot/internal/kafka"
	"github.com/rustlegion/ticket-bot/internal/platform"
	"github.com/rustlegion/ticket-bot/internal/router"
	"github.com/rustlegion/ticket-bot/internal/service"
	"github.com/rustlegion/ticket-bot/internal/ticket"
	"github.com/rustlegion/ticket-bot/internal/transcript"
	"gorm.io/gorm"
)

// App — собранное приложение: Discord-бот плюс HTTP-сервер транскриптов.
// Все ресурсы (пул БД, сессия, продюсер) создаются в New и закрываются в Run
// при отмене контекста; глобальных хэндлов нет.
type App struct {
	cfg      *config.Config
	db       *gorm.DB
	session  *discordgo.Session
	bot      *bot.Bot
	httpSrv  *http.Server
	producer *kafka.Producer
}

func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	discord := platform.NewDiscord(session)
	sink := audit.NewSink(discord, cfg.LogChannelID)
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.EventBrokers), cfg.EventTopic)
	store := service.NewTicketService(db)
	renderer := transcript.New(cfg.TranscriptsDir)

	engine := ticket.NewEngine(store, discord, renderer, sink, producer, ticket.Config{
		CategoryID:    cfg.TicketCategoryID,
		StaffRoleID:   cfg.StaffRoleID,
		TranscriptURL: cfg.TranscriptURL,
	})

	transcripts := handler.NewTranscriptHandler(cfg.TranscriptsDir)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(transcripts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:      cfg,
		db:       db,
		session:  session,
		bot:      bot.New(session, engine, cfg.StaffRoleID, cfg.GuildID),
		httpSrv:  httpSrv,
		producer: producer,
	}, nil
}

// Run открывает гейтвей, регистрирует команды и поднимает HTTP-сервер;
// блокируется до отмены ctx, затем аккуратно всё гасит.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	if err := a.bot.Register(); err != nil {
		return fmt.Errorf("bot register: %w", err)
	}

	go func() {
		log.Printf("HTTP server listening on %s", a.httpSrv.Addr)
		log.Printf("  Transcripts:  /transcripts/{filename}")
		log.Printf("  Swagger UI:   /swagger")
		log.Printf("  Health:       /health")
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := a.session.Close(); err != nil {
		log.Printf("discord close: %v", err)
	}
	if err := a.producer.Close(); err != nil {
		log.Printf("kafka close: %v", err)
	}
	if err := database.Close(a.db); err != nil {
		return fmt.Errorf("database close: %w", err)
	}
	return nil
}
