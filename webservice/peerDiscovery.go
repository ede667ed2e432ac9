package webservice

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grandcat/zeroconf"
)

const (
	mdnsService = "_hevcprobe._tcp"
	mdnsDomain  = "local."
)

// Peer is another hevcprobe instance seen on the local network.
type Peer struct {
	Instance string    `json:"instance"`
	Host     string    `json:"host"`
	Addrs    []string  `json:"addrs"`
	Port     int       `json:"port"`
	Text     []string  `json:"text"`
	LastSeen time.Time `json:"last_seen"`
}

// announce registers this instance; the caller holds wm.mu.
func (wm *WebMaster) announce() error {
	port, err := portOf(wm.config.HTTPAddr)
	if err != nil {
		return err
	}
	instance := "hevcprobe"
	if host, err := os.Hostname(); err == nil {
		instance = "hevcprobe-" + host
	}
	text := []string{"api=/api", "ws=/stream/ws"}
	if wm.config.IngestAddr != "" {
		text = append(text, "ingest="+wm.config.IngestAddr)
	}
	server, err := zeroconf.Register(instance, mdnsService, mdnsDomain, port, text, nil)
	if err != nil {
		return err
	}
	wm.mdns = server
	wm.log.Infof("announced %s.%s%s on port %d", instance, mdnsService, mdnsDomain, port)
	return nil
}

// PeersDiscovery browses for other instances every few seconds until ctx ends.
func (wm *WebMaster) PeersDiscovery(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		if err := wm.browsePeers(ctx, 3*time.Second); err != nil {
			wm.log.Debugf("mDNS browse: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (wm *WebMaster) browsePeers(ctx context.Context, window time.Duration) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	browseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, mdnsService, mdnsDomain, entries); err != nil {
		return err
	}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			wm.addPeer(e)
		case <-browseCtx.Done():
			return nil
		}
	}
}

func (wm *WebMaster) addPeer(e *zeroconf.ServiceEntry) {
	p := Peer{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		LastSeen: time.Now(),
	}
	for _, ip := range e.AddrIPv4 {
		p.Addrs = append(p.Addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		p.Addrs = append(p.Addrs, ip.String())
	}

	wm.peersDiscoveredMu.Lock()
	wm.peersDiscovered[fmt.Sprintf("%s:%d", e.Instance, e.Port)] = p
	wm.peersDiscoveredMu.Unlock()
}

// GET /api/peers
func (wm *WebMaster) handleListPeers(c *gin.Context) {
	wm.peersDiscoveredMu.RLock()
	defer wm.peersDiscoveredMu.RUnlock()

	peers := []Peer{}
	for _, v := range wm.peersDiscovered {
		peers = append(peers, v)
	}
	c.JSON(200, gin.H{"peers": peers})
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}
