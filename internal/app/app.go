// Package app assembles the whole backend: datastore connections, the
// secrets store, every module service, the HTTP server and the chat loop.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cjremmett/webtools/internal/applog"
	"github.com/cjremmett/webtools/internal/bus"
	"github.com/cjremmett/webtools/internal/chat"
	"github.com/cjremmett/webtools/internal/checkin"
	"github.com/cjremmett/webtools/internal/config"
	"github.com/cjremmett/webtools/internal/ddns"
	"github.com/cjremmett/webtools/internal/emailq"
	"github.com/cjremmett/webtools/internal/finance"
	"github.com/cjremmett/webtools/internal/gemini"
	"github.com/cjremmett/webtools/internal/sched"
	"github.com/cjremmett/webtools/internal/secrets"
	"github.com/cjremmett/webtools/internal/server"
	"github.com/cjremmett/webtools/internal/transcript"
)

type App struct {
	cfg *config.Config

	pool    *pgxpool.Pool
	mongoCl *mongo.Client
	rdb     *redis.Client

	secrets     *secrets.Store
	logger      *applog.Logger
	bus         *bus.MessageBus
	sched       *sched.Service
	srv         *server.Server
	accumulator *chat.Accumulator
	checkin     *checkin.Service
	emails      *emailq.Queue

	// for testing signal handling
	signalCh chan os.Signal
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool

	mongoCl, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.mongoCl = mongoCl
	mongoDB := mongoCl.Database(cfg.Mongo.Database)

	a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})

	a.secrets = secrets.NewStore(a.rdb, cfg.Secrets.Dir)
	if err := a.secrets.Reload(ctx); err != nil {
		log.Printf("[app] secrets load warning: %v", err)
	}

	a.logger = applog.New(pool)
	a.bus = bus.NewMessageBus(config.DefaultBufSize)
	a.emails = emailq.NewQueue(emailq.NewPGStore(pool))
	a.checkin = checkin.NewService(checkin.NewPGStore(pool), a.emails)

	geminiKey, err := a.secrets.Value(ctx, "gemini", "api_key")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("gemini api key: %w", err)
	}
	gateway, err := gemini.NewGateway(ctx, geminiKey, cfg.Gemini.Model)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create gemini gateway: %w", err)
	}

	transcriptKey, err := a.secrets.Value(ctx, "api_ninjas", "api_key")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("api ninjas api key: %w", err)
	}
	transcripts := transcript.NewProvider(
		transcript.NewMongoCache(mongoDB),
		transcript.NewHTTPFetcher(transcriptKey),
	)

	chatStore := chat.NewMongoStore(mongoDB)
	a.accumulator = chat.NewAccumulator(chatStore, transcripts, gateway)

	var ddnsClient server.DDNSClient
	if password, err := a.secrets.Value(ctx, "namecheap", "password"); err != nil {
		log.Printf("[app] namecheap password missing, dynamic DNS disabled: %v", err)
	} else {
		ddnsClient = ddns.NewClient(password)
	}

	a.sched = sched.NewService()
	a.registerJobs(ctx, ddnsClient)

	a.srv = server.New(cfg.Server, server.Deps{
		Auth:    a.secrets,
		Log:     a.logger,
		Finance: finance.NewService(),
		Emails:  a.emails,
		Checkin: a.checkin,
		DDNS:    ddnsClient,
		History: chatStore,
		Bus:     a.bus,
	})

	return a, nil
}

func (a *App) registerJobs(ctx context.Context, ddnsClient server.DDNSClient) {
	if ddnsClient != nil {
		host, domain := a.cfg.DDNS.Host, a.cfg.DDNS.Domain
		a.sched.Register("ddns-refresh", a.cfg.DDNS.Schedule, func(ctx context.Context) error {
			ip, err := ddnsClient.Refresh(ctx, host, domain)
			if err != nil {
				return err
			}
			a.logger.Append(ctx, "DYNAMIC_DNS", applog.LevelInfo,
				fmt.Sprintf("Updated DNS for %s with IP address %s.", domain, ip))
			return nil
		})
	}

	a.sched.Register("checkin-reminders", a.cfg.Reminders.CheckinSchedule, func(ctx context.Context) error {
		sent, err := a.checkin.SendManualReminders(ctx)
		if err != nil {
			return err
		}
		log.Printf("[app] queued %d check-in reminders", sent)
		return nil
	})

	if a.cfg.Mail.DispatchSchedule != "" {
		apiKey, err := a.secrets.Value(ctx, "mailjet", "api_key")
		apiSecret, serr := a.secrets.Value(ctx, "mailjet", "api_secret")
		if err != nil || serr != nil {
			log.Printf("[app] mailjet credentials missing, mail dispatch disabled")
			return
		}
		sender := emailq.NewMailjetSender(apiKey, apiSecret)
		from, fromName := a.cfg.Mail.FromEmail, a.cfg.Mail.FromName
		a.sched.Register("mail-dispatch", a.cfg.Mail.DispatchSchedule, func(ctx context.Context) error {
			msgs, err := a.emails.DrainUnsent(ctx)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				if err := sender.Send(from, fromName, m.Recipient, "", m.Subject, m.TextBody, ""); err != nil {
					log.Printf("[app] mail dispatch %s: %v", m.MessageID, err)
				}
			}
			return nil
		})
	}
}

// Run starts everything and blocks until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Secrets.Watch {
		if err := a.secrets.Watch(ctx); err != nil {
			log.Printf("[app] secrets watch warning: %v", err)
		}
	}

	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	go a.chatLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Start()
	}()

	sigCh := a.signalCh
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-sigCh:
		log.Printf("[app] shutting down...")
	case <-ctx.Done():
	}

	return a.Shutdown()
}

// chatLoop consumes inbound chat messages and runs one accumulator cycle per
// message. Cycles run concurrently; the last save for a thread wins.
func (a *App) chatLoop(ctx context.Context) {
	for {
		select {
		case msg := <-a.bus.Inbound:
			go a.handleChat(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) handleChat(ctx context.Context, msg bus.InboundMessage) {
	req := chat.Request{
		UserID:  msg.UserID,
		ChatID:  msg.ChatID,
		Ticker:  msg.Ticker,
		Year:    msg.Year,
		Quarter: msg.Quarter,
		Content: msg.Content,
	}
	cycle, err := a.accumulator.Append(ctx, req, func(t chat.Turn) {
		a.bus.PublishOutbound(bus.OutboundMessage{
			ConnID:  msg.ConnID,
			Role:    string(t.Role),
			Message: t.Content,
		})
	})
	if err != nil {
		a.logger.Append(ctx, "AI_TOOLS", applog.LevelError,
			fmt.Sprintf("Chat cycle for %s failed: %v", msg.ThreadKey(), err))
		return
	}
	log.Printf("[app] chat cycle for %s finished in state %s", msg.ThreadKey(), cycle.State)
}

func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[app] http shutdown warning: %v", err)
	}
	a.sched.Stop()
	a.close()
	log.Printf("[app] shutdown complete")
	return nil
}

func (a *App) close() {
	if a.mongoCl != nil {
		if err := a.mongoCl.Disconnect(context.Background()); err != nil {
			log.Printf("[app] mongo disconnect warning: %v", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
