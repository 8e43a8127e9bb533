package model

import "time"

// FromNamePlaceholder in stored notification content is substituted with the
// sender's current name at revival time, so renames show up retroactively.
const FromNamePlaceholder = "@@from.name@@"

type DbNotification struct {
	ID        string    `bson:"id" json:"id"`
	ToIDs     []string  `bson:"toIds" json:"toIds"`
	FromID    string    `bson:"fromId,omitempty" json:"fromId,omitempty"`
	Content   string    `bson:"content" json:"content"`
	Date      time.Time `bson:"date" json:"date"`
	ReadByIDs []string  `bson:"readByIds" json:"readByIds"`
}

type Notification struct {
	ID        string    `bson:"id" json:"id"`
	ToIDs     []string  `bson:"toIds" json:"toIds"`
	From      User      `bson:"from" json:"from"`
	Content   string    `bson:"content" json:"content"`
	Date      time.Time `bson:"date" json:"date"`
	ReadByIDs []string  `bson:"readByIds" json:"readByIds"`
}
