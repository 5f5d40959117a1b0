// Package mockapi is a stand-in for the LLMOps backend. It speaks the same
// envelope and event-stream wire formats so the client can be exercised
// end to end without the real service.
package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-llmops/client"
)

type Options struct {
	ChunkSize     int           // bytes per flushed write on event streams
	TokenDelay    time.Duration // pause between streamed frames
	JWTSecret     []byte        // enables auth when non-empty
	SessionCookie string        // fallback auth cookie name
	Logger        *zap.Logger
}

type Server struct {
	mu         sync.RWMutex
	chunkSize  int
	tokenDelay time.Duration

	jwtSecret     []byte
	sessionCookie string

	datasets *datasetStore
	engine   *gin.Engine
	logger   *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 4096
	}

	s := &Server{
		chunkSize:     opts.ChunkSize,
		tokenDelay:    opts.TokenDelay,
		jwtSecret:     opts.JWTSecret,
		sessionCookie: opts.SessionCookie,
		datasets:      newDatasetStore(),
		logger:        opts.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	if len(s.jwtSecret) > 0 {
		r.Use(s.authenticate())
	}

	r.GET("/datasets", s.listDatasets)
	r.POST("/datasets", s.createDataset)
	r.GET("/datasets/:dataset_id", s.getDataset)
	r.POST("/datasets/:dataset_id/delete", s.deleteDataset)
	r.GET("/builtin-tools/categories", s.listCategories)
	r.POST("/apps/:app_id/debug", s.debugApp)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Reconfigure changes the streaming knobs of a running server.
func (s *Server) Reconfigure(chunkSize int, tokenDelay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunkSize > 0 {
		s.chunkSize = chunkSize
	}
	if tokenDelay >= 0 {
		s.tokenDelay = tokenDelay
	}
}

// StreamSettings returns the current chunk size and delay between frames.
func (s *Server) StreamSettings() (int, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunkSize, s.tokenDelay
}

// requestLog emits one structured entry per request, tagged with the
// caller's X-Request-Id or a fresh one.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header("X-Request-Id", reqID)

		c.Next()

		s.logger.Info("[mock] request",
			zap.String("id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.RequestURI()),
			zap.Int("status", c.Writer.Status()),
			zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			zap.String("remote_addr", c.ClientIP()),
		)
	}
}

type claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// authenticate accepts an HS256 bearer token, falling back to the session
// cookie.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.userFromRequest(c.Request)
		if err != nil {
			fail(c, http.StatusUnauthorized, client.CodeUnauthorized, "login required")
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func (s *Server) userFromRequest(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		cl := &claims{}
		token, err := jwt.ParseWithClaims(tokenStr, cl, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		})
		if err == nil && token.Valid && cl.UserID != "" {
			return cl.UserID, nil
		}
	}

	if s.sessionCookie != "" {
		if ck, err := r.Cookie(s.sessionCookie); err == nil && ck.Value != "" {
			return ck.Value, nil
		}
	}

	return "", errors.New("unauthenticated")
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, client.Envelope[any]{Code: client.CodeSuccess, Data: data, Message: ""})
}

func fail(c *gin.Context, status int, code client.Code, message string) {
	c.JSON(status, client.Envelope[any]{Code: code, Data: map[string]any{}, Message: message})
}
