// Package api exposes the pipeline over HTTP: one evaluation endpoint,
// a per-symbol state view and the Prometheus scrape handler.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/logger"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/pipeline"
	"github.com/volarix/volarix/state"
	"github.com/volarix/volarix/types"
)

// Server wires the HTTP routes onto a shared pipeline and its state.
type Server struct {
	engine *gin.Engine
	pl     *pipeline.Pipeline
	st     *state.DecisionState
	log    logger.Logger
	defs   config.Params
}

// barDTO is the wire form of one candle, timestamp in unix seconds.
type barDTO struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type signalRequest struct {
	Symbol    string            `json:"symbol" binding:"required"`
	Timeframe string            `json:"timeframe" binding:"required"`
	Bars      []barDTO          `json:"bars" binding:"required"`
	Params    *config.Overrides `json:"params"`
}

type signalResponse struct {
	Decision    string     `json:"decision"`
	Entry       float64    `json:"entry,omitempty"`
	SL          float64    `json:"sl,omitempty"`
	TP1         float64    `json:"tp1,omitempty"`
	TP2         float64    `json:"tp2,omitempty"`
	TP3         float64    `json:"tp3,omitempty"`
	TPFractions []float64  `json:"tp_fractions,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	Reason      string     `json:"reason"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

type stateResponse struct {
	Symbol          string     `json:"symbol"`
	BrokenLevels    int        `json:"broken_levels"`
	NextSignalAfter *time.Time `json:"next_signal_after,omitempty"`
}

// NewServer builds the router. Defaults are the server-wide parameter
// set that request overrides are merged onto.
func NewServer(pl *pipeline.Pipeline, st *state.DecisionState, defs config.Params, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine: gin.New(),
		pl:     pl,
		st:     st,
		log:    log,
		defs:   defs,
	}
	s.engine.Use(gin.Recovery())

	s.engine.POST("/signal", s.handleSignal)
	s.engine.GET("/state/:symbol", s.handleState)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", logger.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) handleSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tf, err := types.ParseTimeframe(req.Timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := s.defs.Apply(req.Params)
	if err := params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bars := make([]types.Bar, len(req.Bars))
	for i, b := range req.Bars {
		bars[i] = types.Bar{
			Time:   time.Unix(b.Time, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	sig, err := s.pl.Evaluate(pipeline.Request{
		Symbol:    req.Symbol,
		Timeframe: tf,
		Bars:      bars,
		Params:    params,
	})
	if err != nil {
		var invalid *market.InvalidBarsError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		s.log.Error("evaluation failed", logger.String("symbol", req.Symbol), logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := signalResponse{
		Decision:    string(sig.Decision),
		Reason:      sig.Reason,
		EvaluatedAt: bars[len(bars)-1].Time,
	}
	if sig.Decision != types.Hold {
		resp.Entry = sig.Entry
		resp.SL = sig.SL
		resp.TP1 = sig.TP1
		resp.TP2 = sig.TP2
		resp.TP3 = sig.TP3
		resp.TPFractions = sig.TPFractions[:]
		resp.Confidence = sig.Confidence
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleState(c *gin.Context) {
	symbol := c.Param("symbol")
	cooldown := time.Duration(s.defs.CooldownHours * float64(time.Hour))

	resp := stateResponse{
		Symbol:       symbol,
		BrokenLevels: s.st.BrokenCount(symbol, time.Now().UTC()),
	}
	if next, ok := s.st.NextSignalAfter(symbol, cooldown); ok {
		resp.NextSignalAfter = &next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
