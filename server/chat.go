package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils"
	"github.com/sparklet/backend/utils/log"
)

// upgrader accepts any origin: the browser client lives on another host and
// authorization happens through the JWT middleware, not the origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeChat upgrades the request to a websocket and runs the caller's chat
// session for one discussion. Membership is checked before the upgrade.
func (s *Server) ServeChat(c *gin.Context) {
	discussionID := c.Param("id")
	uid := userID(c)

	dbDiscussion, err := store.GetDocument[model.DbDiscussion](c.Request.Context(), s.store, "discussions/"+discussionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !utils.ContainsString(dbDiscussion.UserIDs, uid) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "not a member of this discussion"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	s.rooms.Serve(c.Request.Context(), discussionID, uid, conn)
}
