package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	appengine "main/internal/application/service/engine"
	apporderlog "main/internal/application/service/orderlog"
	appsecurities "main/internal/application/service/securities"
	domainmarketdata "main/internal/domain/entity/marketdata"
	domainorderlog "main/internal/domain/entity/orderlog"
	domainsecurities "main/internal/domain/entity/securities"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	securitiesBasePath = "/api/v1/securities"
	orderlogBasePath   = "/api/v1/orderlog"
	depthBasePath      = "/api/v1/depth"
	ingestBasePath     = "/api/v1/ingest"
)

var (
	errMissingUID      = errors.New("missing uid")
	errMissingSecurity = errors.New("security_uid query param required")
	errMissingRange    = errors.New("from/to query params required")
	errUnknownSecurity = errors.New("security has no book yet")
)

type Handler struct {
	router     *gin.Engine
	securities *appsecurities.Service
	orderlog   *apporderlog.Service
	engine     *appengine.Engine
	cache      *redis.Client
	cacheTTL   time.Duration
}

func NewHandler(sec *appsecurities.Service, ol *apporderlog.Service, eng *appengine.Engine, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		securities: sec,
		orderlog:   ol,
		engine:     eng,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)

	sec := h.router.Group(securitiesBasePath)
	if h.cache != nil {
		sec.Use(h.cacheMiddleware())
	}
	{
		sec.POST("/", h.createSecurity)
		sec.PUT("/", h.updateSecurity)
		sec.GET("/", h.getSecurity)
		sec.GET("/list", h.listSecurities)
		sec.GET("/ticker/:ticker", h.getSecurityByTicker)
		sec.DELETE("/", h.deleteSecurity)
	}

	ol := h.router.Group(orderlogBasePath)
	if h.cache != nil {
		ol.Use(h.cacheMiddleware())
	}
	{
		ol.GET("/", h.getEntriesRange)
		ol.GET("/last", h.getEntriesLast)
	}

	dep := h.router.Group(depthBasePath)
	{
		dep.GET("/:uid", h.getDepth)
		dep.GET("/:uid/best", h.getBestPair)
	}

	ing := h.router.Group(ingestBasePath)
	{
		ing.POST("/depth", h.ingestDepth)
		ing.POST("/trade", h.ingestTrade)
		ing.POST("/level1", h.ingestLevel1)
		ing.POST("/orders/register", h.ingestOrderRegister)
		ing.POST("/orders/replace", h.ingestOrderReplace)
		ing.POST("/orders/cancel", h.ingestOrderCancel)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Securities handlers

type securityPayload struct {
	UID        string          `json:"uid"`
	Ticker     string          `json:"ticker"`
	BoardCode  string          `json:"board_code"`
	TimeZone   string          `json:"time_zone"`
	Lot        int32           `json:"lot"`
	PriceStep  decimal.Decimal `json:"price_step"`
	VolumeStep decimal.Decimal `json:"volume_step"`
}

func (p securityPayload) toDomain() (*domainsecurities.Security, error) {
	sec := &domainsecurities.Security{
		Ticker: p.Ticker,
		Board: domainsecurities.Board{
			Code:     p.BoardCode,
			TimeZone: p.TimeZone,
		},
		Lot:        p.Lot,
		PriceStep:  p.PriceStep,
		VolumeStep: p.VolumeStep,
	}
	if p.UID != "" {
		uid, err := uuid.Parse(p.UID)
		if err != nil {
			return nil, fmt.Errorf("parse uid: %w", err)
		}
		sec.UID = uid
	}
	return sec, nil
}

func (h *Handler) createSecurity(c *gin.Context) {
	var payload securityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	sec, err := payload.toDomain()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.securities.CreateSecurity(c.Request.Context(), sec); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, sec)
}

func (h *Handler) updateSecurity(c *gin.Context) {
	var payload securityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if payload.UID == "" {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	sec, err := payload.toDomain()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.securities.UpdateSecurity(c.Request.Context(), sec); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) getSecurity(c *gin.Context) {
	uid, err := parseUUIDQuery(c, "uid")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	sec, err := h.securities.GetSecurity(c.Request.Context(), uid)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) getSecurityByTicker(c *gin.Context) {
	ticker := c.Param("ticker")
	if ticker == "" {
		writeError(c, http.StatusBadRequest, errors.New("ticker is required"))
		return
	}
	sec, err := h.securities.GetSecurityByTicker(c.Request.Context(), ticker)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) listSecurities(c *gin.Context) {
	list, err := h.securities.ListSecurities(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) deleteSecurity(c *gin.Context) {
	uid, err := parseUUIDQuery(c, "uid")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	if err := h.securities.DeleteSecurity(c.Request.Context(), uid); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Order log handlers

func (h *Handler) getEntriesRange(c *gin.Context) {
	securityUID, err := parseUUIDQuery(c, "security_uid")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingSecurity)
		return
	}
	from, to, err := parseTimeRange(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingRange)
		return
	}
	entries, err := h.orderlog.GetEntriesBetween(c.Request.Context(), securityUID, from, to)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) getEntriesLast(c *gin.Context) {
	securityUID, limit, err := h.parseSecurityAndLimit(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.orderlog.GetLastEntries(c.Request.Context(), securityUID, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Depth handlers

func (h *Handler) getDepth(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	view := h.engine.DepthView(uid)
	if view == nil {
		writeError(c, http.StatusNotFound, errUnknownSecurity)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getBestPair(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	book := h.engine.Book(uid)
	if book == nil {
		writeError(c, http.StatusNotFound, errUnknownSecurity)
		return
	}
	pair := book.BestPair()
	c.JSON(http.StatusOK, pair)
}

// Ingest handlers

func (h *Handler) ingestDepth(c *gin.Context) {
	var msg domainmarketdata.DepthSnapshot
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnDepth(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) ingestTrade(c *gin.Context) {
	var msg domainmarketdata.Trade
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnTrade(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) ingestLevel1(c *gin.Context) {
	var msg domainmarketdata.Level1Change
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnLevel1(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) ingestOrderRegister(c *gin.Context) {
	var msg domainmarketdata.OrderRegister
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnOrderRegister(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) ingestOrderReplace(c *gin.Context) {
	var msg domainmarketdata.OrderReplace
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnOrderReplace(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) ingestOrderCancel(c *gin.Context) {
	var msg domainmarketdata.OrderCancel
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	entries, err := h.engine.OnOrderCancel(c.Request.Context(), &msg)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	h.respondEntries(c, entries)
}

func (h *Handler) respondEntries(c *gin.Context, entries []*domainorderlog.Entry) {
	if h.orderlog != nil && len(entries) > 0 {
		batch := make([]domainorderlog.Entry, 0, len(entries))
		for _, e := range entries {
			batch = append(batch, *e)
		}
		if err := h.orderlog.AddEntries(c.Request.Context(), batch); err != nil {
			writeError(c, http.StatusInternalServerError, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Helpers

func (h *Handler) parseSecurityAndLimit(c *gin.Context) (uuid.UUID, int, error) {
	securityUID, err := parseUUIDQuery(c, "security_uid")
	if err != nil {
		return uuid.UUID{}, 0, errMissingSecurity
	}
	limit, err := parseIntQuery(c, "limit")
	if err != nil {
		return uuid.UUID{}, 0, fmt.Errorf("limit query param required")
	}
	if limit <= 0 {
		return uuid.UUID{}, 0, fmt.Errorf("limit must be positive")
	}
	return securityUID, limit, nil
}

func parseUUIDQuery(c *gin.Context, key string) (uuid.UUID, error) {
	return uuid.Parse(c.Query(key))
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	return strconv.Atoi(c.Query(key))
}

func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errMissingRange
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}
