package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

func (s *Server) GetComments(c *gin.Context) {
	var filters []store.Filter
	if ideaID := c.Query("ideaId"); ideaID != "" {
		filters = append(filters, store.Filter{Field: "ideaId", Operator: store.FilterEq, Value: ideaID})
	}
	if authorID := c.Query("authorId"); authorID != "" {
		filters = append(filters, store.Filter{Field: "authorId", Operator: store.FilterEq, Value: authorID})
	}
	order := &store.Order{Field: c.DefaultQuery("order", "date"), Desc: true}

	dbComments, err := store.GetDocuments[model.DbComment](c.Request.Context(), s.store, "comments", order, filters...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	comments, err := s.reviver.Comments(c.Request.Context(), dbComments, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) GetComment(c *gin.Context) {
	dbComment, err := store.GetDocument[model.DbComment](c.Request.Context(), s.store, "comments/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	comments, err := s.reviver.Comments(c.Request.Context(), []model.DbComment{dbComment}, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments[0])
}

func (s *Server) PostComment(c *gin.Context) {
	var body struct {
		IdeaID  string `json:"ideaId"`
		Content string `json:"content"`
	}
	if err := c.BindJSON(&body); err != nil || body.IdeaID == "" || body.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "ideaId and content are required"})
		return
	}
	id, err := s.store.Insert(c.Request.Context(), "comments", model.DbComment{
		IdeaID:   body.IdeaID,
		AuthorID: userID(c),
		Content:  body.Content,
		Date:     time.Now().UTC(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insertedId": id})
}

// DeleteComment removes the comment; its votes are cleaned up by the
// comment trigger reacting to the delete.
func (s *Server) DeleteComment(c *gin.Context) {
	path := "comments/" + c.Param("id")
	if !s.requireAuthor(c, path) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), path); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
