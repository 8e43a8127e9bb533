package model

import "time"

type DbComment struct {
	ID       string    `bson:"id" json:"id"`
	IdeaID   string    `bson:"ideaId" json:"ideaId"`
	AuthorID string    `bson:"authorId" json:"authorId"`
	Content  string    `bson:"content" json:"content"`
	Date     time.Time `bson:"date" json:"date"`
	// Rating is a denormalized counter maintained by the votes trigger.
	Rating int `bson:"rating" json:"rating"`
}

type Comment struct {
	ID      string    `bson:"id" json:"id"`
	IdeaID  string    `bson:"ideaId" json:"ideaId"`
	Author  User      `bson:"author" json:"author"`
	Content string    `bson:"content" json:"content"`
	Date    time.Time `bson:"date" json:"date"`
	Rating  int       `bson:"rating" json:"rating"`
	// UserVote is the viewer's own vote on this comment, nil if none.
	UserVote *int `bson:"userVote,omitempty" json:"userVote,omitempty"`
}

// Cheer is a user's endorsement of an idea. Its id is deterministic so a
// user can cheer a given idea at most once.
type Cheer struct {
	ID       string `bson:"id" json:"id"`
	IdeaID   string `bson:"ideaId" json:"ideaId"`
	AuthorID string `bson:"authorId" json:"authorId"`
}

// Vote is a user's +1/-1 on a comment, with the same one-per-user id scheme
// as Cheer.
type Vote struct {
	ID        string `bson:"id" json:"id"`
	CommentID string `bson:"commentId" json:"commentId"`
	AuthorID  string `bson:"authorId" json:"authorId"`
	Value     int    `bson:"value" json:"value"`
}

func MakeCheerID(ideaID, userID string) string {
	return StableID(ideaID + userID)
}

func MakeVoteID(commentID, userID string) string {
	return StableID(commentID + userID)
}
