package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hevcprobe/webservice"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pion/logging"
)

func main() {
	// a missing .env is fine, the environment may already be set
	envErr := godotenv.Load()

	loggerFactory := logging.NewDefaultLoggerFactory()
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	loggerFactory.DefaultLogLevel = level
	if level < logging.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	log := loggerFactory.NewLogger("main")
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warnf("loading .env: %v", envErr)
	}

	config := webservice.WebMasterConfig{
		HTTPAddr:      envOr("HTTP_ADDR", ":8079"),
		IngestAddr:    envOr("INGEST_ADDR", ":27183"),
		MediaDir:      envOr("MEDIA_DIR", "."),
		EnableMDNS:    os.Getenv("MDNS_ENABLE") != "NO",
		Strict:        os.Getenv("SPS_STRICT") == "YES",
		FPS:           envInt("PROBE_FPS", 30),
		ProbeLimit:    envInt("PROBE_LIMIT_KB", 256) << 10,
		IdleTimeout:   time.Duration(envInt("INGEST_IDLE_SECONDS", 10)) * time.Second,
		LoggerFactory: loggerFactory,
	}
	if v, ok := os.LookupEnv("INGEST_ADDR"); ok && v == "" {
		config.IngestAddr = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webMaster := webservice.New(config)
	go func() {
		if err := webMaster.Serve(); err != nil {
			log.Errorf("serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Gracefully closing")
	webMaster.Close()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn", "warning":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}
