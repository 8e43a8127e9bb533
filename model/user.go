package model

import "time"

// DbUser is the stored shape of a user. The id is derived from the identity
// provider's subject claim, so the same person always maps to the same doc.
type DbUser struct {
	ID            string         `bson:"id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	Bio           string         `bson:"bio" json:"bio"`
	Date          time.Time      `bson:"date" json:"date"`
	Cover         string         `bson:"cover,omitempty" json:"cover,omitempty"`
	ExternalLinks []ExternalLink `bson:"externalLinks" json:"externalLinks"`
}

// User is the API-facing shape. IsUser flags whether this user is the
// authenticated viewer.
type User struct {
	ID            string         `bson:"id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	Bio           string         `bson:"bio" json:"bio"`
	Date          time.Time      `bson:"date" json:"date"`
	Cover         string         `bson:"cover,omitempty" json:"cover,omitempty"`
	ExternalLinks []ExternalLink `bson:"externalLinks" json:"externalLinks"`
	IsUser        bool           `bson:"isUser" json:"isUser"`
}

// MissingUserName is what a dangling user reference revives to. References
// can dangle transiently under concurrent deletion, so revival substitutes
// this marker instead of failing the whole batch.
const MissingUserName = "[deleted]"

func MissingUser(id string) User {
	return User{ID: id, Name: MissingUserName}
}

type ExternalLink struct {
	Type string `bson:"type" json:"type"`
	URL  string `bson:"url" json:"url"`
}
