// Package middlewares holds the gin middlewares shared by every route:
// JWT authorization and redis-backed rate limiting.
package middlewares

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/utils/log"
)

const rateLimitWindow = time.Minute

var (
	// jwtPublicKey verifies the identity provider's RS256 signatures. Setup
	// must run before any middleware is used.
	jwtPublicKey *rsa.PublicKey

	// redisClient backs rate limiting. Nil when REDIS_HOST is unset, in
	// which case rate limiting is a no-op (local development).
	redisClient *redis.Client
)

// Setup initializes the package scoped state the middlewares depend on: the
// JWT verification key from JWT_PUBLIC_KEY and, when REDIS_HOST is set, the
// redis client used for rate limiting.
func Setup() {
	pem := os.Getenv("JWT_PUBLIC_KEY")
	if pem == "" {
		log.Log.Fatalln("JWT_PUBLIC_KEY is not set")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		log.Log.Fatalf("fail to parse JWT_PUBLIC_KEY: %v", err)
	}
	jwtPublicKey = key

	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     host,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
	}
}

// extractToken pulls the bearer token from the Authorization header, falling
// back to the "token" query parameter for the transports that cannot set
// headers (EventSource, websockets).
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, found := strings.CutPrefix(auth, "Bearer "); found {
			return token
		}
	}
	return c.Query("token")
}

// JWT validates the caller's bearer token and replaces it with a "sub"
// header carrying the caller's document id, which handlers read. Requests
// without a valid token are rejected.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "empty jwt token"})
			c.Abort()
			return
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			return jwtPublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			c.Abort()
			return
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil || sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "token has no subject"})
			c.Abort()
			return
		}

		// The same subject always maps to the same document id.
		c.Request.Header.Del("token")
		c.Request.Header.Set("sub", model.StableID(sub))

		c.Next()
	}
}

// RateLimit caps each client IP at maxRequests per window, counted in
// redis so the cap holds across replicas.
func RateLimit(maxRequests int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		count, err := redisClient.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Fail open: a redis outage should not take the API down.
			log.Log.Warnf("rate limit check failed: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(c.Request.Context(), key, rateLimitWindow)
		}
		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
