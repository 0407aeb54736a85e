// Package storesvc is the reference implementation of the persistence
// collaborator the hub relays through: it issues the credentials the hub
// verifies and stores posts and direct messages. In production deployments
// it can be swapped for any service honoring the same HTTP contract.
package storesvc

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	intrnl "github.com/ashishexplains17/websockets/internal"
	"github.com/ashishexplains17/websockets/internal/storage"
)

type Service struct {
	store       *storage.Store
	verifier    intrnl.Verifier
	authLimiter *intrnl.RateLimiter
	secret      string
	tokenTTL    time.Duration
	log         *zap.Logger
}

func New(store *storage.Store, secret string, tokenTTL time.Duration, log *zap.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:       store,
		verifier:    intrnl.NewJWTVerifier(secret),
		authLimiter: intrnl.NewRateLimiter(10, time.Minute),
		secret:      secret,
		tokenTTL:    tokenTTL,
		log:         log,
	}
}

// Register installs the service's routes on a gin engine.
func (s *Service) Register(router *gin.Engine) {
	router.POST("/signup", s.HandleSignup)
	router.POST("/login", s.HandleLogin)

	authed := router.Group("/", s.requireIdentity)
	authed.POST("/posts", s.HandleCreatePost)
	authed.GET("/posts", s.HandleListPosts)
	authed.POST("/messages", s.HandleCreateMessage)
	authed.GET("/messages/:chat", s.HandleListMessages)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Service) HandleSignup(c *gin.Context) {
	if !s.authLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hashing failed"})
		return
	}
	id, err := s.store.CreateUser(c.Request.Context(), username, strings.TrimSpace(req.Avatar), hash)
	if err != nil {
		if err == storage.ErrUserExists {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": strconv.FormatInt(id, 10), "username": username})
}

func (s *Service) HandleLogin(c *gin.Context) {
	if !s.authLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	user, err := s.store.GetUserByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(strings.TrimSpace(req.Password))) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	identity := intrnl.Identity{
		ID:     strconv.FormatInt(user.ID, 10),
		Name:   user.Username,
		Avatar: user.Avatar,
	}
	token, err := intrnl.SignIdentity(s.secret, identity, s.tokenTTL)
	if err != nil {
		s.log.Error("token signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		UserID:    identity.ID,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	})
}

const identityKey = "identity"

// requireIdentity verifies the bearer credential and stashes the resolved
// identity in the request context.
func (s *Service) requireIdentity(c *gin.Context) {
	credential := ""
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			credential = strings.TrimSpace(authz[len("bearer "):])
		}
	}
	identity, err := s.verifier.Verify(credential)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func callerIdentity(c *gin.Context) intrnl.Identity {
	identity, _ := c.MustGet(identityKey).(intrnl.Identity)
	return identity
}

type createPostRequest struct {
	Body string `json:"body"`
}

func (s *Service) HandleCreatePost(c *gin.Context) {
	identity := callerIdentity(c)
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post body is required"})
		return
	}
	post, err := s.store.CreatePost(c.Request.Context(), identity.ID, identity.Name, req.Body)
	if err != nil {
		s.log.Error("post insert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post could not be saved"})
		return
	}
	c.JSON(http.StatusCreated, toStoredPost(*post))
}

func (s *Service) HandleListPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	posts, err := s.store.ListRecentPosts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	out := make([]intrnl.StoredPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, toStoredPost(p))
	}
	c.JSON(http.StatusOK, gin.H{"posts": out})
}

func (s *Service) HandleCreateMessage(c *gin.Context) {
	identity := callerIdentity(c)
	var req intrnl.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" || req.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient and content are required"})
		return
	}
	if req.ChatID == "" {
		req.ChatID = chatKey(identity.ID, req.Recipient)
	}
	msg, err := s.store.CreateMessage(c.Request.Context(), storage.Message{
		ChatID:      req.ChatID,
		SenderID:    identity.ID,
		RecipientID: req.Recipient,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
		MediaType:   req.MediaType,
	})
	if err != nil {
		s.log.Error("message insert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message could not be saved"})
		return
	}
	c.JSON(http.StatusCreated, toStoredMessage(*msg))
}

func (s *Service) HandleListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := s.store.ListChatMessages(c.Request.Context(), c.Param("chat"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	out := make([]intrnl.StoredMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toStoredMessage(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// chatKey derives a stable chat id for a user pair regardless of direction.
func chatKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func toStoredPost(p storage.Post) intrnl.StoredPost {
	return intrnl.StoredPost{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		Body:       p.Body,
		CreatedAt:  p.CreatedAt.Unix(),
	}
}

func toStoredMessage(m storage.Message) intrnl.StoredMessage {
	return intrnl.StoredMessage{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Recipient: m.RecipientID,
		Content:   m.Content,
		MediaURL:  m.MediaURL,
		MediaType: m.MediaType,
		CreatedAt: m.CreatedAt.Unix(),
	}
}
