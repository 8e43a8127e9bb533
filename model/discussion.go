package model

import "time"

type DbDiscussion struct {
	ID            string    `bson:"id" json:"id"`
	UserIDs       []string  `bson:"userIds" json:"userIds"`
	ReadByIDs     []string  `bson:"readByIds" json:"readByIds"`
	LastMessageID string    `bson:"lastMessageId,omitempty" json:"lastMessageId,omitempty"`
	Date          time.Time `bson:"date" json:"date"`
}

type Discussion struct {
	ID          string    `bson:"id" json:"id"`
	Users       []User    `bson:"users" json:"users"`
	ReadByIDs   []string  `bson:"readByIds" json:"readByIds"`
	LastMessage *Message  `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	Date        time.Time `bson:"date" json:"date"`
}

type DbMessage struct {
	ID           string    `bson:"id" json:"id"`
	DiscussionID string    `bson:"discussionId" json:"discussionId"`
	AuthorID     string    `bson:"authorId" json:"authorId"`
	Content      string    `bson:"content" json:"content"`
	Date         time.Time `bson:"date" json:"date"`
	Deleted      bool      `bson:"deleted" json:"deleted"`
}

type Message struct {
	ID           string    `bson:"id" json:"id"`
	DiscussionID string    `bson:"discussionId" json:"discussionId"`
	Author       User      `bson:"author" json:"author"`
	Content      string    `bson:"content" json:"content"`
	Date         time.Time `bson:"date" json:"date"`
	Deleted      bool      `bson:"deleted" json:"deleted"`
}

// Wire sentinels shared with the clients.
const (
	// PingPayload is pushed periodically on SSE streams so intermediaries
	// do not drop idle connections.
	PingPayload = "ping"

	// PlaceholderMessageID is the doc id a client uses for its optimistic
	// local insert of a message it just sent. The chat room echoes the
	// author's own insert back as an update against this id so the client
	// replaces the optimistic copy instead of duplicating it.
	PlaceholderMessageID = "placeholder"

	// DeleteMessagePrefix followed by a message id, sent as a chat payload,
	// soft-deletes that message.
	DeleteMessagePrefix = "@delete:"

	// DeletedMessageContent is the tombstone a soft-deleted message keeps.
	DeletedMessageContent = "deleted"
)
