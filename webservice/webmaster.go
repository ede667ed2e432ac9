package webservice

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"sync"
	"time"

	"hevcprobe/sdriver/annexb"

	"github.com/gin-gonic/gin"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

type WebMasterConfig struct {
	HTTPAddr   string
	IngestAddr string // empty disables TCP ingest
	MediaDir   string // root for file sources
	EnableMDNS bool

	Strict      bool // strict SPS parsing in drivers
	FPS         int
	ProbeLimit  int
	IdleTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

type WebMaster struct {
	sessions   map[string]*StreamSession
	sessionsMu sync.RWMutex

	config WebMasterConfig
	router *gin.Engine
	log    logging.LeveledLogger

	peersDiscovered   map[string]Peer
	peersDiscoveredMu sync.RWMutex

	// mu guards the listeners Serve starts and Close stops
	mu     sync.Mutex
	server *http.Server
	mdns   *zeroconf.Server
	ingest *annexb.Listener

	pending chan *annexb.Driver

	ctx    context.Context
	cancel context.CancelFunc
}

func New(config WebMasterConfig) *WebMaster {
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	wm := &WebMaster{
		sessions:        make(map[string]*StreamSession),
		config:          config,
		log:             config.LoggerFactory.NewLogger("webservice"),
		peersDiscovered: make(map[string]Peer),
		pending:         make(chan *annexb.Driver, 4),
		ctx:             ctx,
		cancel:          cancel,
	}
	wm.setRouter()
	return wm
}

func Default() *WebMaster {
	return New(WebMasterConfig{
		HTTPAddr:    ":8079",
		IngestAddr:  ":27183",
		MediaDir:    ".",
		EnableMDNS:  true,
		FPS:         30,
		IdleTimeout: 10 * time.Second,
	})
}

func (wm *WebMaster) setRouter() {
	r := gin.Default()
	r.GET("/", func(ctx *gin.Context) {
		ctx.Redirect(http.StatusFound, "/api/health")
	})
	stream := r.Group("/stream")
	{
		stream.GET("/ws", wm.handleStreamWS)
	}
	api := r.Group("/api")
	{
		api.GET("/health", wm.handleHealth)
		api.POST("/sps/parse", wm.handleParseSPS)
		api.POST("/stream/probe", wm.handleProbeStream)
		api.GET("/peers", wm.handleListPeers)
		api.GET("/sessions", wm.handleListSessions)
	}

	wm.router = r
}

// Serve starts ingest and mDNS if configured, then blocks serving HTTP
// until Close is called. After Close it returns nil at once.
func (wm *WebMaster) Serve() error {
	wm.mu.Lock()
	if wm.ctx.Err() != nil {
		wm.mu.Unlock()
		return nil
	}
	if wm.config.IngestAddr != "" {
		l, err := annexb.Listen(wm.config.IngestAddr, wm.driverConfig(false))
		if err != nil {
			wm.mu.Unlock()
			return err
		}
		wm.ingest = l
		go wm.acceptIngest(l)
	}
	if wm.config.EnableMDNS {
		if err := wm.announce(); err != nil {
			wm.log.Warnf("mDNS announce failed: %v", err)
		}
		go wm.PeersDiscovery(wm.ctx)
	}
	server := &http.Server{Addr: wm.config.HTTPAddr, Handler: wm.router}
	wm.server = server
	wm.mu.Unlock()

	wm.log.Infof("listening on %s", wm.config.HTTPAddr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (wm *WebMaster) Close() {
	wm.cancel()
	wm.mu.Lock()
	server, mdns, ingest := wm.server, wm.mdns, wm.ingest
	wm.mu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
	}
	if ingest != nil {
		ingest.Close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}

	wm.sessionsMu.Lock()
	sessions := maps.Clone(wm.sessions)
	clear(wm.sessions)
	wm.sessionsMu.Unlock()
	for k, v := range sessions {
		wm.log.Infof("closing session %v", k)
		v.Close()
	}

	wm.drainPending()
}

func (wm *WebMaster) driverConfig(file bool) annexb.Config {
	return annexb.Config{
		FPS:         wm.config.FPS,
		Pace:        file,
		Strict:      wm.config.Strict,
		ProbeLimit:  wm.config.ProbeLimit,
		IdleTimeout: wm.config.IdleTimeout,
		Logger:      wm.config.LoggerFactory.NewLogger("annexb"),
	}
}
