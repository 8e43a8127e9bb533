package server

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/uploads"
)

func (s *Server) GetIdeas(c *gin.Context) {
	var filters []store.Filter
	if goalID := c.Query("goalId"); goalID != "" {
		filters = append(filters, store.Filter{Field: "goalIds", Operator: store.FilterIn, Value: []string{goalID}})
	}
	if authorID := c.Query("authorId"); authorID != "" {
		filters = append(filters, store.Filter{Field: "authorId", Operator: store.FilterEq, Value: authorID})
	}
	if search := c.Query("regex"); search != "" {
		filters = append(filters, store.Filter{Field: "title", Operator: store.FilterRegex, Value: search})
	}
	order := &store.Order{Field: c.DefaultQuery("order", "date"), Desc: true}

	dbIdeas, err := store.GetDocuments[model.DbIdea](c.Request.Context(), s.store, "ideas", order, filters...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ideas, err := s.reviver.Ideas(c.Request.Context(), dbIdeas, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	for i := range ideas {
		ideas[i].Content = s.fixImageSources(ideas[i].Content)
	}
	c.JSON(http.StatusOK, ideas)
}

func (s *Server) GetIdea(c *gin.Context) {
	dbIdea, err := store.GetDocument[model.DbIdea](c.Request.Context(), s.store, "ideas/"+c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	idea, err := s.reviver.Idea(c.Request.Context(), dbIdea, userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	idea.Content = s.fixImageSources(idea.Content)
	c.JSON(http.StatusOK, idea)
}

// PostIdea creates an idea from a multipart form: title, content and
// goalIds fields, an optional cover file and the inline content images.
// Inline references are rewritten from the client-side file names to the
// stored upload names.
func (s *Server) PostIdea(c *gin.Context) {
	title := c.PostForm("title")
	content := c.PostForm("content")
	goalIDs, err := parseStringArray(c.PostForm("goalIds"))
	if err != nil || title == "" || content == "" || len(goalIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "title, content and goalIds are required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	cover, err := s.saveCover(c, form)
	if err != nil {
		abortWithError(c, err)
		return
	}
	content, err = s.saveContentImages(c, form, content)
	if err != nil {
		abortWithError(c, err)
		return
	}

	id, err := s.store.Insert(c.Request.Context(), "ideas", model.DbIdea{
		Title:         title,
		AuthorID:      userID(c),
		GoalIDs:       goalIDs,
		Content:       content,
		ExternalLinks: []model.ExternalLink{},
		Date:          time.Now().UTC(),
		Cover:         cover,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insertedId": id})
}

// PatchIdea updates an idea's editable fields. Only the author may patch.
func (s *Server) PatchIdea(c *gin.Context) {
	path := "ideas/" + c.Param("id")
	if !s.requireAuthor(c, path) {
		return
	}

	var patches []store.Patch
	if title := c.PostForm("title"); title != "" {
		patches = append(patches, store.Patch{Field: "title", Operator: store.PatchSet, Value: title})
	}
	if content := c.PostForm("content"); content != "" {
		if form, err := c.MultipartForm(); err == nil {
			content, err = s.saveContentImages(c, form, content)
			if err != nil {
				abortWithError(c, err)
				return
			}
		}
		patches = append(patches, store.Patch{Field: "content", Operator: store.PatchSet, Value: content})
	}
	if raw := c.PostForm("goalIds"); raw != "" {
		goalIDs, err := parseStringArray(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}
		patches = append(patches, store.Patch{Field: "goalIds", Operator: store.PatchSet, Value: goalIDs})
	}
	if form, err := c.MultipartForm(); err == nil && len(form.File["cover"]) > 0 {
		cover, err := s.saveCover(c, form)
		if err != nil {
			abortWithError(c, err)
			return
		}
		patches = append(patches, store.Patch{Field: "cover", Operator: store.PatchSet, Value: cover})
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
	if err := s.store.Patch(c.Request.Context(), path, patches...); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// DeleteIdea removes the idea document. Uploads and dependent comments are
// cleaned up by the idea trigger reacting to the delete.
func (s *Server) DeleteIdea(c *gin.Context) {
	path := "ideas/" + c.Param("id")
	if !s.requireAuthor(c, path) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), path); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// fixImageSources turns stored upload names in inline image tags into URLs
// the client can fetch.
func (s *Server) fixImageSources(content string) string {
	if s.uploadsBaseURL == "" {
		return content
	}
	return uploads.ImageSrcRe.ReplaceAllString(content,
		fmt.Sprintf(`<img src="%s/$1">`, s.uploadsBaseURL))
}

func (s *Server) saveCover(c *gin.Context, form *multipart.Form) (string, error) {
	files := form.File["cover"]
	if len(files) == 0 {
		return "", nil
	}
	return s.saveImage(c, files[0], "cover")
}

// saveContentImages stores every uploaded inline image and rewrites its
// references in content from the client file name to the upload name.
func (s *Server) saveContentImages(c *gin.Context, form *multipart.Form, content string) (string, error) {
	for _, file := range form.File["images"] {
		name, err := s.saveImage(c, file, "images")
		if err != nil {
			return "", err
		}
		content = strings.ReplaceAll(content,
			fmt.Sprintf(`<img src="%s">`, file.Filename),
			fmt.Sprintf(`<img src="%s">`, name))
	}
	return content, nil
}

func (s *Server) saveImage(c *gin.Context, file *multipart.FileHeader, field string) (string, error) {
	contentType := file.Header.Get("Content-Type")
	ext, err := uploads.ImageExt(contentType)
	if err != nil {
		return "", err
	}
	f, err := file.Open()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open upload %s", file.Filename)
	}
	defer f.Close()
	name := uploads.UniqueName(field, ext)
	if err := s.uploads.Save(c.Request.Context(), name, contentType, f); err != nil {
		return "", err
	}
	return name, nil
}

func parseStringArray(raw string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, errors.Wrapf(err, "not a string array: %q", raw)
	}
	return values, nil
}

// externalLinkPatches translates the addExternalLink / removeExternalLink
// form fields, each a JSON-encoded link, into set-membership patches.
func externalLinkPatches(c *gin.Context) ([]store.Patch, error) {
	var patches []store.Patch
	if raw := c.PostForm("addExternalLink"); raw != "" {
		link, err := parseExternalLink(raw)
		if err != nil {
			return nil, err
		}
		patches = append(patches, store.Patch{Field: "externalLinks", Operator: store.PatchAddToSet, Value: link})
	}
	if raw := c.PostForm("removeExternalLink"); raw != "" {
		link, err := parseExternalLink(raw)
		if err != nil {
			return nil, err
		}
		patches = append(patches, store.Patch{Field: "externalLinks", Operator: store.PatchPull, Value: link})
	}
	return patches, nil
}

func parseExternalLink(raw string) (model.ExternalLink, error) {
	var link model.ExternalLink
	if err := json.Unmarshal([]byte(raw), &link); err != nil {
		return link, errors.Wrapf(err, "not an external link: %q", raw)
	}
	return link, nil
}
