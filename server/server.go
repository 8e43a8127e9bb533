// Package server wires the HTTP surface: REST handlers for the stored
// collections, SSE endpoints for the live lists and the websocket chat
// endpoint.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/sparklet/backend/live"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
	"github.com/sparklet/backend/uploads"
	"github.com/sparklet/backend/utils/log"
)

type Server struct {
	store   store.Accessor
	reviver *revive.Reviver
	router  *stream.Router
	rooms   *live.Manager
	uploads uploads.Store

	// uploadsBaseURL prefixes upload names when rewriting stored image
	// references into fetchable URLs.
	uploadsBaseURL string
}

func New(
	s store.Accessor,
	reviver *revive.Reviver,
	router *stream.Router,
	rooms *live.Manager,
	up uploads.Store,
	uploadsBaseURL string,
) *Server {
	return &Server{
		store:          s,
		reviver:        reviver,
		router:         router,
		rooms:          rooms,
		uploads:        up,
		uploadsBaseURL: uploadsBaseURL,
	}
}

// Register binds every route. All routes sit behind the auth middleware:
// even reads are personalized (userHasCheered, userVote), so there is no
// anonymous surface.
func (s *Server) Register(r *gin.Engine, middleware ...gin.HandlerFunc) {
	api := r.Group("/", middleware...)

	api.GET("goals", s.GetGoals)
	api.GET("goals/:id", s.GetGoal)

	api.GET("users", s.GetUsers)
	api.GET("users/:id", s.GetUser)
	api.PUT("users/:id", s.PutUser)
	api.PATCH("users/:id", s.PatchUser)

	api.GET("ideas", s.GetIdeas)
	api.GET("ideas/:id", s.GetIdea)
	api.POST("ideas", s.PostIdea)
	api.PATCH("ideas/:id", s.PatchIdea)
	api.DELETE("ideas/:id", s.DeleteIdea)

	api.GET("comments", s.GetComments)
	api.GET("comments/:id", s.GetComment)
	api.POST("comments", s.PostComment)
	api.DELETE("comments/:id", s.DeleteComment)

	api.GET("cheers/:id", s.GetCheer)
	api.PUT("cheers/:id", s.PutCheer)
	api.DELETE("cheers/:id", s.DeleteCheer)

	api.PUT("votes/:id", s.PutVote)
	api.DELETE("votes/:id", s.DeleteVote)

	api.GET("discussions", s.StreamDiscussions)
	api.GET("discussions/:id", s.GetDiscussion)
	api.POST("discussions", s.PostDiscussion)
	api.PATCH("discussions/:id", s.PatchDiscussion)

	api.GET("notifications", s.StreamNotifications)
	api.PATCH("notifications/:id", s.PatchNotification)

	api.GET("chat/:id", s.ServeChat)
}

// userID is the caller's document id, set by the auth middleware.
func userID(c *gin.Context) string {
	return c.GetHeader("sub")
}

func abortWithError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		return
	}
	log.Log.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
}

// requireAuthor loads the addressed document and rejects the request unless
// the caller is its author. Used by every destructive route.
func (s *Server) requireAuthor(c *gin.Context, path string) bool {
	doc, err := s.store.GetOne(c.Request.Context(), path)
	if err != nil {
		abortWithError(c, err)
		return false
	}
	author, _ := doc["authorId"].(string)
	if author != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "not the author"})
		return false
	}
	return true
}
