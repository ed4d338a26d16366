package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyli-org/hyliquid-sub000/params"
	"github.com/hyli-org/hyliquid-sub000/pkg/actions"
	"github.com/hyli-org/hyliquid-sub000/pkg/api"
	"github.com/hyli-org/hyliquid-sub000/pkg/bridge"
	"github.com/hyli-org/hyliquid-sub000/pkg/state"
	"github.com/hyli-org/hyliquid-sub000/pkg/storage"
	"github.com/hyli-org/hyliquid-sub000/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	if cfg.HashedSecretHex == "" {
		sugar.Fatalw("missing HASHED_SECRET_HEX: permissioned actions cannot be authenticated without it")
	}
	hashedSecretBytes, err := hex.DecodeString(cfg.HashedSecretHex)
	if err != nil || len(hashedSecretBytes) != sha256.Size {
		sugar.Fatalw("invalid HASHED_SECRET_HEX, want 64 hex chars (32 bytes)", "err", err)
	}
	var hashedSecret [32]byte
	copy(hashedSecret[:], hashedSecretBytes)

	// ---- Execution core ----
	fullState := state.New(hashedSecret, []byte(cfg.Hyli.OrderbookCN))

	eventLog, err := storage.OpenEventLog(cfg.Storage.EventLogPath)
	if err != nil {
		sugar.Fatalw("event_log_open_failed", "path", cfg.Storage.EventLogPath, "err", err)
	}
	defer eventLog.Close()

	reconciler := bridge.NewLogOnly(sugar)
	dispatcher := actions.NewDispatcher(fullState, reconciler)

	sugar.Infow("execution_core_started", "orderbook_cn", cfg.Hyli.OrderbookCN, "event_log_path", cfg.Storage.EventLogPath)

	// ---- API Server ----
	apiServer := api.NewServer(dispatcher, eventLog, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.ListenAddr)
		if err := apiServer.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Progress heartbeat, mirroring the teacher's periodic consensus-height
	// log but against this core's batch index instead of a block height.
	// Driven by util.Clock (as the teacher's pacemaker drives view timeouts)
	// rather than a bare time.Ticker, so the loop is swappable under test.
	go util.RunEvery(ctx, util.RealClock{}, 30*time.Second, func() {
		latest, ok, err := eventLog.LatestIndex()
		if err != nil {
			sugar.Warnw("latest_index_read_failed", "err", err)
			return
		}
		sugar.Infow("heartbeat", "latest_batch_index", latest, "has_committed_batches", ok)
	})

	<-ctx.Done()
	sugar.Infow("shutting_down")
}
