package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/live"
	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils"
	"github.com/sparklet/backend/utils/log"
)

// StreamNotifications is the SSE endpoint behind the notifications list.
func (s *Server) StreamNotifications(c *gin.Context) {
	uid := userID(c)
	snapshot := func(ctx context.Context) (interface{}, error) {
		dbNotifications, err := store.GetDocuments[model.DbNotification](ctx, s.store, "notifications",
			&store.Order{Field: "date", Desc: true},
			store.Filter{Field: "toIds", Operator: store.FilterIn, Value: []string{uid}},
		)
		if err != nil {
			return nil, err
		}
		return s.reviver.Notifications(ctx, dbNotifications)
	}
	keep := func(change model.Change[model.Notification]) bool {
		return notificationTargets(change.DocBefore, uid) || notificationTargets(change.DocAfter, uid)
	}

	err := live.ServeSSE(c.Request.Context(), live.NewSSE(c.Writer), s.router.Notifications, snapshot, keep)
	if err != nil {
		log.Log.Errorf("notifications stream for %s ended: %v", uid, err)
	}
}

func notificationTargets(n *model.Notification, uid string) bool {
	return n != nil && utils.ContainsString(n.ToIDs, uid)
}

// PatchNotification marks the notification read by the caller.
func (s *Server) PatchNotification(c *gin.Context) {
	path := "notifications/" + c.Param("id")
	dbNotification, err := store.GetDocument[model.DbNotification](c.Request.Context(), s.store, path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !utils.ContainsString(dbNotification.ToIDs, userID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "not a recipient of this notification"})
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
