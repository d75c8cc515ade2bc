package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/catalog"
	"trade-companion/backend/internal/store"
	"trade-companion/backend/internal/trade"
)

// Config defines server dependencies.
type Config struct {
	DBPath             string
	DataDir            string
	DefaultLeague      string
	Contact            string
	SessionID          string
	AllowedOrigins     []string
	SilentDB           bool
	FuzzyThreshold     float64
	StatsRetryInterval time.Duration
	RequestPause       time.Duration
	HistoryLimit       int
	StatsBaseURL       string
	TradeBaseURL       string
}

// Server wires HTTP handlers with the catalog, limiter and persistence.
type Server struct {
	db             *store.Database
	catalog        *catalog.Cache
	resolver       *catalog.Resolver
	tradeClient    *trade.Client
	limiter        *trade.Limiter
	notifier       *RateLimitNotifier
	defaultLeague  string
	allowedOrigins []string
	requestPause   time.Duration
	historyLimit   int

	persistMu       sync.Mutex
	lastPersistedAt time.Time
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	if strings.TrimSpace(cfg.Contact) == "" {
		return nil, errors.New("contact user agent required by upstream usage policy")
	}

	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	statsClient, err := catalog.NewClient(catalog.Config{
		BaseURL:   cfg.StatsBaseURL,
		UserAgent: cfg.Contact,
	})
	if err != nil {
		return nil, fmt.Errorf("stats client: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	fileCache := catalog.NewFileCache(filepath.Join(dataDir, "stats-cache.json"))
	seedFileCache(db, fileCache)

	statsCache := catalog.NewCache(statsClient, fileCache, cfg.StatsRetryInterval)
	resolver := catalog.NewResolver(statsCache, cfg.FuzzyThreshold)

	tradeClient, err := trade.NewClient(trade.ClientConfig{
		BaseURL:   cfg.TradeBaseURL,
		UserAgent: cfg.Contact,
		SessionID: cfg.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("trade client: %w", err)
	}

	league := strings.TrimSpace(cfg.DefaultLeague)
	if league == "" {
		league = "Standard"
	}

	pause := cfg.RequestPause
	if pause < 0 {
		pause = 0
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}

	return &Server{
		db:             db,
		catalog:        statsCache,
		resolver:       resolver,
		tradeClient:    tradeClient,
		limiter:        trade.NewLimiter(nil),
		notifier:       NewRateLimitNotifier(),
		defaultLeague:  league,
		allowedOrigins: cfg.AllowedOrigins,
		requestPause:   pause,
		historyLimit:   historyLimit,
	}, nil
}

// seedFileCache restores the disk cache from the database snapshot so a fresh
// deployment can serve the catalog before the upstream is reachable.
func seedFileCache(db *store.Database, fileCache *catalog.FileCache) {
	if _, _, err := fileCache.Read(); err == nil {
		return
	}
	snapshot, err := db.LatestCatalogSnapshot()
	if err != nil || snapshot == nil {
		return
	}
	if err := fileCache.Write(snapshot.Raw(), snapshot.FetchedAt); err != nil {
		logrus.WithError(err).Warn("seed stats disk cache from database")
		return
	}
	logrus.WithField("fetched_at", snapshot.FetchedAt).Info("seeded stats disk cache from database")
}

// Close releases the underlying database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.POST("/search", s.handleSearch)
		api.GET("/searches", s.handleSearches)
		api.GET("/ratelimit", s.handleRateLimit)
		api.GET("/ratelimit/stream", s.handleRateLimitStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	searches, err := s.db.CountSearches()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	catalogLoaded := false
	var catalogFetchedAt *time.Time
	if snapshot := s.catalog.Snapshot(); snapshot != nil {
		catalogLoaded = true
		catalogFetchedAt = &snapshot.FetchedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"default_league":     s.defaultLeague,
		"fuzzy_threshold":    s.resolver.Threshold(),
		"recorded_searches":  searches,
		"catalog_loaded":     catalogLoaded,
		"catalog_fetched_at": catalogFetchedAt,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	snapshot, err := s.catalog.Fetch(c.Request.Context())
	if err != nil {
		if errors.Is(err, catalog.ErrCacheUnavailable) {
			s.renderError(c, http.StatusServiceUnavailable, err)
		} else {
			s.renderError(c, http.StatusBadGateway, err)
		}
		return
	}
	s.persistSnapshot(snapshot)

	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, StatsResponse{
		Data:        snapshot.Raw,
		LastUpdated: snapshot.FetchedAt,
		Stale:       snapshot.Stale,
	})
}

func (s *Server) handleSearches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	rows, err := s.db.RecentSearches(limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	total, err := s.db.CountSearches()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]SearchRecordDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, SearchRecordFromModel(row))
	}
	c.JSON(http.StatusOK, SearchesResponse{Items: dtos, Total: total})
}

func (s *Server) handleRateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, RateLimitResponse{Tiers: s.limiter.State()})
}

func (s *Server) handleRateLimitStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("rate limit websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("rate limit websocket closed")
			} else {
				logrus.WithError(err).Warn("rate limit websocket unexpected close")
			}
			break
		}
	}
}

// persistSnapshot writes a freshly fetched catalog through to the database.
// Stale snapshots came from a cache in the first place and are not re-saved.
func (s *Server) persistSnapshot(snapshot *catalog.Snapshot) {
	if snapshot == nil || snapshot.Stale {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !snapshot.FetchedAt.After(s.lastPersistedAt) {
		return
	}

	record := &store.CatalogSnapshot{
		Source:     "trade-api",
		EntryCount: len(snapshot.All),
		FetchedAt:  snapshot.FetchedAt,
	}
	record.SetRaw(snapshot.Raw)
	if err := s.db.SaveCatalogSnapshot(record); err != nil {
		logrus.WithError(err).Warn("persist catalog snapshot")
		return
	}
	s.lastPersistedAt = snapshot.FetchedAt
}

func (s *Server) broadcastRateLimit(message string) {
	s.notifier.Broadcast(RateLimitEvent{
		Type:    "ratelimit",
		Tiers:   s.limiter.State(),
		Message: message,
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
