package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mt5copier/internal/account"
	"mt5copier/internal/core"
	"mt5copier/internal/datasync"
	"mt5copier/internal/queues"
	"mt5copier/internal/strategy"
	"mt5copier/internal/supervisor"
	"mt5copier/internal/terminal"
	"mt5copier/internal/uiapi"
	"mt5copier/pkg/barstore"
	"mt5copier/pkg/i18n"
	"mt5copier/pkg/iniconfig"
	"mt5copier/pkg/secretkey"
	"mt5copier/pkg/strategyconfig"
)

// env reads an ambient setting, falling back to def. These are the knobs
// godotenv.Load lets a developer override locally (API port, file paths);
// everything domain-specific (accounts, risk thresholds, checkInterval)
// lives in the ini config file instead (spec.md §6).
func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	_ = godotenv.Load() // best-effort; absent in production containers

	configPath := env("MT5COPIER_CONFIG", "config.ini")
	keyPath := env("MT5COPIER_KEY_PATH", "data/secret.key")
	overlayPath := env("MT5COPIER_STRATEGY_OVERLAY", "strategy_overlay.yaml")
	dataDir := env("MT5COPIER_DATA_DIR", "data")
	apiAddr := env("MT5COPIER_API_ADDR", ":8080")
	jwtSecret := env("MT5COPIER_JWT_SECRET", "")
	passwordHash := env("MT5COPIER_PASSWORD_HASH", "")
	buildVersion := env("APP_VERSION", "v0-dev")

	f, err := iniconfig.Load(configPath)
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	appCfg := account.LoadAppConfig(f)
	i18n.SetLanguage(i18n.Language(appCfg.Language))
	log.Println(i18n.Get("Starting"))

	checkInterval := time.Duration(appCfg.CheckIntervalSeconds * float64(time.Second))
	log.Printf(i18n.Get("ConfigLoaded"), checkInterval)
	log.Printf(i18n.Get("UsingDataDir"), dataDir)

	km, err := secretkey.Load(keyPath)
	if err != nil {
		log.Fatalf("failed to load key manager: %v", err)
	}

	store := account.NewStore()
	for _, a := range account.LoadAccounts(f, km) {
		store.Put(a)
	}

	overlay, err := strategyconfig.Load(overlayPath)
	if err != nil {
		log.Fatalf("failed to load strategy overlay: %v", err)
	}

	registry := strategy.NewRegistry()
	strategy.RegisterBuiltins(registry)
	runtime := strategy.NewRuntime()

	bars, err := barstore.Open(dataDir + "/bars.db")
	if err != nil {
		log.Fatalf(i18n.Get("BarStoreInitFailed"), err)
	}
	defer bars.Close()

	commands := queues.NewCommandQueue()
	logs := queues.NewLogQueue()
	snapshots := queues.NewAccountSnapshotQueue()

	gate := terminal.NewGate(terminal.NewMockAdapter())

	sup := supervisor.New(store, gate, commands, logs, runtime)
	sup.Snapshots = snapshots
	if appCfg.RiskStopEnabled {
		sup.ArmRiskStop(appCfg.RiskStopThreshold)
	}

	loop := core.New(store, gate, sup, runtime, registry, overlay, commands, logs, checkInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	master1, ok := store.Get("master1")
	if ok {
		rates := datasync.NewGatedRates(gate, master1)
		worker := datasync.New(rates, bars, logs)
		go worker.Serve(ctx)
	} else {
		log.Println("no master1 account configured, data sync worker idle")
	}

	server := uiapi.New(commands, snapshots, logs, jwtSecret, passwordHash, uiapi.Meta{
		Version: buildVersion,
		Venue:   "mt5",
	})
	go func() {
		if err := server.Start(apiAddr); err != nil {
			log.Fatalf("uiapi server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))
}
