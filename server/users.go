package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

func (s *Server) GetGoals(c *gin.Context) {
	goals, err := store.GetDocuments[model.Goal](c.Request.Context(), s.store, "goals",
		&store.Order{Field: "order"})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, goals)
}

func (s *Server) GetGoal(c *gin.Context) {
	goal, err := store.GetDocument[model.Goal](c.Request.Context(), s.store, "goals/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (s *Server) GetUsers(c *gin.Context) {
	var filters []store.Filter
	if search := c.Query("regex"); search != "" {
		filters = append(filters, store.Filter{Field: "name", Operator: store.FilterRegex, Value: search})
	}
	dbUsers, err := store.GetDocuments[model.DbUser](c.Request.Context(), s.store, "users",
		&store.Order{Field: "name"}, filters...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	users, err := s.reviver.Users(c.Request.Context(), dbUsers, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) GetUser(c *gin.Context) {
	dbUser, err := store.GetDocument[model.DbUser](c.Request.Context(), s.store, "users/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	user, err := s.reviver.User(c.Request.Context(), dbUser, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PutUser creates the caller's own profile on first login. The id in the
// path must be the caller's.
func (s *Server) PutUser(c *gin.Context) {
	if c.Param("id") != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "can only create your own profile"})
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "name is required"})
		return
	}
	user := model.DbUser{
		ID:            userID(c),
		Name:          body.Name,
		Date:          time.Now().UTC(),
		ExternalLinks: []model.ExternalLink{},
	}
	if err := s.store.Put(c.Request.Context(), "users/"+userID(c), user, true); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// PatchUser edits the caller's own profile: name, bio and external links.
func (s *Server) PatchUser(c *gin.Context) {
	if c.Param("id") != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "can only edit your own profile"})
		return
	}
	var patches []store.Patch
	if name := c.PostForm("name"); name != "" {
		patches = append(patches, store.Patch{Field: "name", Operator: store.PatchSet, Value: name})
	}
	if bio := c.PostForm("bio"); bio != "" {
		patches = append(patches, store.Patch{Field: "bio", Operator: store.PatchSet, Value: bio})
	}
	linkPatches, err := externalLinkPatches(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	patches = append(patches, linkPatches...)

	if len(patches) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "nothing to patch"})
		return
	}
	if err := s.store.Patch(c.Request.Context(), "users/"+userID(c), patches...); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
