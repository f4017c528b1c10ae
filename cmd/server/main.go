package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"survivor-arena/internal/api"
	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  SURVIVOR ARENA - GO ENGINE")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	simCfg := appConfig.Simulation
	serverCfg := appConfig.Server

	// Gameplay tuning: shipped defaults unless a balance file is given
	var balance *config.Balance
	if serverCfg.BalancePath != "" {
		b, err := config.LoadBalance(serverCfg.BalancePath)
		if err != nil {
			log.Fatalf("❌ Failed to load balance: %v", err)
		}
		balance = b
		log.Printf("⚖️ Balance loaded from %s", serverCfg.BalancePath)
	} else {
		def := config.DefaultBalance()
		balance = &def
	}
	if _, err := balance.Policy(simCfg.LevelPolicy); err != nil {
		log.Fatalf("❌ Invalid level policy: %v", err)
	}

	log.Printf("🎮 Config: %d TPS, %d snapshot pushes/s, policy %q, %dx%d default viewport",
		simCfg.TickRate, simCfg.BroadcastRate, simCfg.LevelPolicy,
		appConfig.Viewport.DefaultWidth, appConfig.Viewport.DefaultHeight)
	limits := appConfig.Limits
	log.Printf("🛡️ Resource limits: %d enemies, %d projectiles, %d particles, %d texts",
		limits.MaxEnemies, limits.MaxProjectiles, limits.MaxParticles, limits.MaxTexts)

	// Start event log (shared by every run)
	var eventLog *game.EventLog
	if serverCfg.EventLogPath != "" {
		eventLog = game.NewEventLog()
		if err := eventLog.Start(serverCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
			eventLog = nil
		} else {
			log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
		}
	}

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = appConfig.Debug.Enabled
	debugCfg.ListenAddr = appConfig.Debug.ListenAddr
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	// Session manager hosts every run
	sessionCfg := session.ConfigFromApp(appConfig, balance, eventLog)
	sessionCfg.Hooks = api.SessionHooks()
	manager := session.NewManager(sessionCfg)
	manager.Start()
	log.Printf("✅ Session manager started (max %d, idle timeout %s)",
		serverCfg.MaxSessions, serverCfg.SessionIdleTimeout)

	// Mirror event log counters into metrics
	stopStats := make(chan struct{})
	if eventLog != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-stopStats:
					return
				case <-ticker.C:
					api.UpdateEventLogStats(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
				}
			}
		}()
	}

	server := api.NewServer(manager, balance, eventLog, appConfig)

	// Start API server in goroutine
	addr := ":" + strconv.Itoa(serverCfg.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("🕹️ New run: POST http://localhost%s/api/sessions", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	manager.Stop()
	close(stopStats)
	if eventLog != nil {
		eventLog.Stop()
	}
	log.Println("👋 Goodbye!")
}
