package bot

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/broker"
	"stockbot/src/config"
	"stockbot/src/database"
	"stockbot/src/engine"
	"stockbot/src/gate"
	"stockbot/src/marketdata"
	"stockbot/src/monitoring"
	"stockbot/src/portfolio"
	"stockbot/src/predictor"
	"stockbot/src/repository"
	"stockbot/src/risk"
	"stockbot/src/server"
	"stockbot/src/stoploss"
)

// Bot wires the engine, its collaborators and the operator API together
// and runs them until the process is told to stop.
type Bot struct{}

func (b *Bot) Start() error {
	setupLogger()

	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("invalid trading configuration, refusing to start")
		return err
	}

	botCfg := GetConfig()
	serverCfg := server.GetConfig()

	var store engine.Store
	if botCfg.EnableDB {
		if err := database.InitMainDB(); err != nil {
			logger.WithError(err).Error("database init failed")
			return err
		}
		store = repository.NewStore()
	} else {
		logger.Warn("running without a database, state will not survive a restart")
	}

	calc := risk.NewCalculator(cfg)
	deps := engine.Deps{
		Calculator: calc,
		Stops:      stoploss.NewManager(calc),
		Monitor:    portfolio.NewMonitor(cfg),
		Gate:       gate.NewGate(cfg),
		Broker:     broker.NewAlpacaClient(botCfg.AlpacaAPIKey, botCfg.AlpacaAPISecret, botCfg.AlpacaBaseURL),
		MarketData: marketdata.NewClient(botCfg.AlpacaAPIKey, botCfg.AlpacaAPISecret, botCfg.AlpacaDataURL, botCfg.AlpacaBaseURL),
		Predictor:  predictor.NewHTTPPredictor(botCfg.PredictorURL, 10*time.Second),
		Store:      store,
	}

	eng := engine.New(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logger.Fields{
		"mode":    cfg.Mode,
		"symbols": cfg.Symbols,
	}).Info("starting trading engine")

	eng.SetRunning(ctx, true)
	eng.Start(ctx)

	if botCfg.EnableQuoteStream && botCfg.AlpacaStreamURL != "" {
		stream := marketdata.NewStream(
			botCfg.AlpacaAPIKey, botCfg.AlpacaAPISecret, botCfg.AlpacaStreamURL,
			cfg.Symbols,
			func(symbol string, price decimal.Decimal, at time.Time) {
				eng.UpdateQuote(symbol, price)
				monitoring.UpdatePrice(symbol, price.InexactFloat64())
			},
		)
		go stream.Run(ctx)
	}

	server.New(eng).Start(ctx, serverCfg.Port, serverCfg.OperatorTokenHash)

	logger.Info("shutting down trading engine...")
	eng.Stop()
	logger.Info("bye")
	return nil
}

func setupLogger() {
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})

	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)
}
