// Package api exposes the voting workflows over HTTP.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"election-coordinator/models"
	"election-coordinator/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// ChainInspector is implemented by ledgers whose block log can be read
// directly, such as the development ledger.
type ChainInspector interface {
	Blocks() []*models.Block
	VerifyChain() error
}

type Server struct {
	votingService *service.VotingService
	chain         ChainInspector
	log           logrus.FieldLogger
	engine        *gin.Engine
}

type LookupVoterRequest struct {
	VoterID string `json:"voter_id"`
}

type CastVoteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
}

type BlockchainResponse struct {
	BlockCount int          `json:"block_count"`
	Blocks     []*BlockInfo `json:"blocks"`
	IsValid    bool         `json:"is_valid"`
	Error      string       `json:"error,omitempty"`
	LastHash   string       `json:"last_hash"`
}

type BlockInfo struct {
	Index      uint64             `json:"index"`
	Timestamp  int64              `json:"timestamp"`
	Hash       string             `json:"hash"`
	PrevHash   string             `json:"prev_hash"`
	Nonce      uint64             `json:"nonce"`
	Difficulty uint8              `json:"difficulty"`
	Data       models.Transaction `json:"transaction"`
}

// NewServer builds the router. chain may be nil, in which case the
// blockchain endpoints are not registered.
func NewServer(votingService *service.VotingService, chain ChainInspector, logger logrus.FieldLogger) *Server {
	s := &Server{
		votingService: votingService,
		chain:         chain,
		log:           logger.WithField("component", "api"),
		engine:        gin.New(),
	}
	s.engine.Use(s.requestID(), s.accessLog(), gin.Recovery())
	s.registerRoutes(s.engine)
	return s
}

func (s *Server) registerRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/status", s.handleGetStatus)
	api.GET("/candidates", s.handleGetCandidates)
	api.GET("/results", s.handleGetResults)
	api.POST("/voter", s.handleLookupVoter)
	api.POST("/vote", s.handleCastVote)
	api.GET("/metrics", s.handleGetMetrics)

	if s.chain != nil {
		api.GET("/blockchain", s.handleGetBlockchain)
		api.GET("/blockchain/validate", s.handleValidateChain)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.WithField("listen", addr).Info("starting server")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	s.log.Info("server shutdown completed")
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(service.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"request_id": service.RequestIDFrom(c.Request.Context()),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
	}
}

func (s *Server) handleGetStatus(c *gin.Context) {
	status, err := s.votingService.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleGetCandidates(c *gin.Context) {
	candidates, err := s.votingService.ListCandidates(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

func (s *Server) handleGetResults(c *gin.Context) {
	results, err := s.votingService.Results(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleLookupVoter(c *gin.Context) {
	var req LookupVoterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	voter, err := s.votingService.LookupVoter(c.Request.Context(), req.VoterID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, voter)
}

func (s *Server) handleCastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	receipt, err := s.votingService.CastVote(c.Request.Context(), req.VoterID, req.CandidateID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleGetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.votingService.Metrics().GetMetrics())
}

func (s *Server) handleGetBlockchain(c *gin.Context) {
	blocks := s.chain.Blocks()
	resp := BlockchainResponse{
		BlockCount: len(blocks),
		Blocks:     make([]*BlockInfo, 0, len(blocks)),
		IsValid:    true,
		LastHash:   hex.EncodeToString(models.GenesisHash()),
	}
	for _, b := range blocks {
		info, err := newBlockInfo(b)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.Blocks = append(resp.Blocks, info)
	}
	if len(blocks) > 0 {
		resp.LastHash = hex.EncodeToString(blocks[len(blocks)-1].Hash)
	}
	if err := s.chain.VerifyChain(); err != nil {
		resp.IsValid = false
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleValidateChain(c *gin.Context) {
	if err := s.chain.VerifyChain(); err != nil {
		c.JSON(http.StatusOK, gin.H{"is_valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_valid": true})
}

func newBlockInfo(b *models.Block) (*BlockInfo, error) {
	info := &BlockInfo{
		Index:      b.Index,
		Timestamp:  b.Timestamp,
		Hash:       hex.EncodeToString(b.Hash),
		PrevHash:   hex.EncodeToString(b.PrevHash),
		Nonce:      b.Nonce,
		Difficulty: b.Difficulty,
	}
	if err := json.Unmarshal(b.Data, &info.Data); err != nil {
		return nil, errors.Wrapf(err, "block %d does not hold a transaction", b.Index)
	}
	return info, nil
}
