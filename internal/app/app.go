package app

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Nik1855/CryptoMasterPro/internal/ai"
	"github.com/Nik1855/CryptoMasterPro/internal/analysis"
	"github.com/Nik1855/CryptoMasterPro/internal/cache"
	"github.com/Nik1855/CryptoMasterPro/internal/chain"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/errlog"
	"github.com/Nik1855/CryptoMasterPro/internal/market"
	"github.com/Nik1855/CryptoMasterPro/internal/monitor"
	"github.com/Nik1855/CryptoMasterPro/internal/notify"
	"github.com/Nik1855/CryptoMasterPro/internal/selfheal"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openSettings() (*config.Settings, error) {
	return config.LoadSettings(a.Config.Settings.Path)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return notify.NopNotifier{}
}

func (a *App) newMarket() (*market.Client, market.PriceFetcher) {
	client := market.NewClient(market.Options{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
	cached := market.NewCachedPrices(client, cache.New[market.PriceData](a.Config.Cache.PriceTTL))
	return client, cached
}

// newSources assembles the whale transfer sources: one explorer per configured
// chain plus the raw Ethereum RPC scanner, all behind the long-TTL cache.
func (a *App) newSources(prices market.PriceFetcher) []chain.Source {
	transferCache := cache.New[[]chain.Transfer](a.Config.Cache.ChainTTL)

	var sources []chain.Source
	for chainID, explorer := range a.Config.Explorers.Chains {
		if explorer.APIKey == "" {
			a.Logger.Warn().Str("chain", chainID).Msg("explorer api key not configured; chain disabled")
			continue
		}
		src := chain.NewExplorer(chain.ExplorerOptions{
			Chain:        strings.ToUpper(chainID),
			Name:         explorer.Name,
			APIURL:       explorer.APIURL,
			APIKey:       explorer.APIKey,
			Timeout:      a.Config.Explorers.RequestTimeout,
			MaxTransfers: a.Config.Explorers.MaxPerChain,
		}, a.Logger)
		sources = append(sources, chain.NewCachedSource(src, transferCache))
	}

	if a.Config.Ethereum.RPCURL != "" {
		pricer := func(ctx context.Context) (decimal.Decimal, error) {
			price, err := prices.FetchPrice(ctx, "ETH/USDT")
			if err != nil {
				return decimal.Zero, err
			}
			return price.Price, nil
		}
		rpc := chain.NewRPCSource(chain.RPCOptions{
			RPCURL:  a.Config.Ethereum.RPCURL,
			Timeout: a.Config.Ethereum.RequestTimeout,
		}, pricer, a.Logger)
		sources = append(sources, chain.NewCachedSource(rpc, transferCache))
	}

	return sources
}

func (a *App) newAI() *ai.Client {
	if a.Config.AI.APIKey == "" {
		return nil
	}
	return ai.NewClient(ai.Options{
		BaseURL: a.Config.AI.BaseURL,
		APIKey:  a.Config.AI.APIKey,
		Model:   a.Config.AI.Model,
		Timeout: a.Config.AI.RequestTimeout,
	}, a.Logger)
}

// Run executes the long-running watchdog: the monitoring loop plus the
// self-healing loop, stopped together on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, err := a.openSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	notifier := a.newNotifier()
	client, prices := a.newMarket()
	sources := a.newSources(prices)
	aiClient := a.newAI()
	if aiClient == nil {
		a.Logger.Warn().Msg("ai.api_key not configured; self-healing and recommendations disabled")
	}

	var (
		whaleStore  storage.WhaleStore
		alertStore  storage.AlertStore
		errorStore  storage.ErrorLogStore
		candleStore storage.CandleStore
	)
	if store != nil {
		whaleStore, alertStore, errorStore, candleStore = store, store, store, store
	}

	reporter := errlog.NewReporter(errorStore, notifier, settings, a.Logger)

	var recommender ai.Recommender
	if aiClient != nil {
		recommender = aiClient
	}
	analyzer := analysis.New(client, candleStore, recommender, a.Config.Analysis, a.Logger)

	mon := monitor.New(monitor.Deps{
		Prices:   prices,
		Sources:  sources,
		Whales:   whaleStore,
		Alerts:   alertStore,
		Analyzer: analyzer,
		Notifier: notifier,
		Settings: settings,
		Reporter: reporter,
	}, a.Config.Monitor, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	mon.Start(ctx)
	defer mon.Stop()

	if aiClient != nil && store != nil {
		healer := selfheal.New(selfheal.Deps{
			Errors:    store,
			Suggester: aiClient,
			Runner:    &selfheal.GoTestRunner{Dir: a.Config.SelfHeal.SourceDir},
			Notifier:  notifier,
			Settings:  settings,
		}, a.Config.SelfHeal, a.Logger)

		a.Logger.Info().Msg("starting self-healing service")
		healer.Start(ctx)
		defer healer.Stop()
	}

	<-ctx.Done()
	a.Logger.Info().Msg("shutting down")
	return nil
}
