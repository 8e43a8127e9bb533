package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

// PutCheer records the caller's cheer for an idea. The id is deterministic
// per (idea, user), so re-cheering replaces instead of duplicating and the
// supports counter stays honest. The counter itself is maintained by the
// cheer trigger, not here.
func (s *Server) PutCheer(c *gin.Context) {
	var body struct {
		IdeaID string `json:"ideaId"`
	}
	if err := c.BindJSON(&body); err != nil || body.IdeaID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "ideaId is required"})
		return
	}
	id := c.Param("id")
	if id != model.MakeCheerID(body.IdeaID, userID(c)) {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "id does not match ideaId and caller"})
		return
	}
	cheer := model.Cheer{ID: id, IdeaID: body.IdeaID, AuthorID: userID(c)}
	if err := s.store.Put(c.Request.Context(), "cheers/"+id, cheer, true); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// GetCheer exists so a client can probe whether the caller already cheered:
// it derives the id locally and gets either the cheer or a 404.
func (s *Server) GetCheer(c *gin.Context) {
	cheer, err := store.GetDocument[model.Cheer](c.Request.Context(), s.store, "cheers/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cheer)
}

func (s *Server) DeleteCheer(c *gin.Context) {
	path := "cheers/" + c.Param("id")
	if !s.requireAuthor(c, path) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), path); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// PutVote upserts the caller's +1/-1 on a comment. The rating counter is
// maintained by the vote trigger, which sees the previous value in the
// change's before image.
func (s *Server) PutVote(c *gin.Context) {
	var body struct {
		CommentID string `json:"commentId"`
		Value     int    `json:"value"`
	}
	if err := c.BindJSON(&body); err != nil || body.CommentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "commentId and value are required"})
		return
	}
	if body.Value != 1 && body.Value != -1 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "value must be 1 or -1"})
		return
	}
	id := c.Param("id")
	if id != model.MakeVoteID(body.CommentID, userID(c)) {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "id does not match commentId and caller"})
		return
	}
	vote := model.Vote{ID: id, CommentID: body.CommentID, AuthorID: userID(c), Value: body.Value}
	if err := s.store.Put(c.Request.Context(), "votes/"+id, vote, true); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) DeleteVote(c *gin.Context) {
	path := "votes/" + c.Param("id")
	if !s.requireAuthor(c, path) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), path); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
