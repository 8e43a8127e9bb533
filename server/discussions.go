package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/live"
	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils"
	"github.com/sparklet/backend/utils/log"
)

// StreamDiscussions is the SSE endpoint behind the discussions list: a
// snapshot of the caller's discussions followed by their live changes.
func (s *Server) StreamDiscussions(c *gin.Context) {
	uid := userID(c)
	snapshot := func(ctx context.Context) (interface{}, error) {
		dbDiscussions, err := store.GetDocuments[model.DbDiscussion](ctx, s.store, "discussions",
			&store.Order{Field: "date", Desc: true},
			store.Filter{Field: "userIds", Operator: store.FilterIn, Value: []string{uid}},
		)
		if err != nil {
			return nil, err
		}
		return s.reviver.Discussions(ctx, dbDiscussions)
	}
	keep := func(change model.Change[model.Discussion]) bool {
		return discussionInvolves(change.DocBefore, uid) || discussionInvolves(change.DocAfter, uid)
	}

	err := live.ServeSSE(c.Request.Context(), live.NewSSE(c.Writer), s.router.Discussions, snapshot, keep)
	if err != nil {
		log.Log.Errorf("discussions stream for %s ended: %v", uid, err)
	}
}

func discussionInvolves(d *model.Discussion, uid string) bool {
	if d == nil {
		return false
	}
	for _, user := range d.Users {
		if user.ID == uid {
			return true
		}
	}
	return false
}

func (s *Server) GetDiscussion(c *gin.Context) {
	dbDiscussion, err := store.GetDocument[model.DbDiscussion](c.Request.Context(), s.store, "discussions/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !utils.ContainsString(dbDiscussion.UserIDs, userID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "not a member of this discussion"})
		return
	}
	discussion, err := s.reviver.Discussion(c.Request.Context(), dbDiscussion)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, discussion)
}

// PostDiscussion opens a discussion with another user and posts its first
// message in the same request, so an empty discussion can never exist.
func (s *Server) PostDiscussion(c *gin.Context) {
	var body struct {
		ToUserID            string `json:"toUserId"`
		FirstMessageContent string `json:"firstMessageContent"`
	}
	if err := c.BindJSON(&body); err != nil || body.ToUserID == "" || body.FirstMessageContent == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "toUserId and firstMessageContent are required"})
		return
	}
	if body.ToUserID == userID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "cannot open a discussion with yourself"})
		return
	}

	id, err := s.store.Insert(c.Request.Context(), "discussions", model.DbDiscussion{
		UserIDs:   []string{userID(c), body.ToUserID},
		ReadByIDs: []string{},
		Date:      time.Now().UTC(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := s.rooms.PostMessage(c.Request.Context(), id, userID(c), body.FirstMessageContent); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insertedId": id})
}

// PatchDiscussion marks the discussion read by the caller.
func (s *Server) PatchDiscussion(c *gin.Context) {
	path := "discussions/" + c.Param("id")
	dbDiscussion, err := store.GetDocument[model.DbDiscussion](c.Request.Context(), s.store, path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !utils.ContainsString(dbDiscussion.UserIDs, userID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "not a member of this discussion"})
		return
	}
	err = s.store.Patch(c.Request.Context(), path,
		store.Patch{Field: "readByIds", Operator: store.PatchAddToSet, Value: userID(c)})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
