package model

import "time"

type DbIdea struct {
	ID            string         `bson:"id" json:"id"`
	Title         string         `bson:"title" json:"title"`
	AuthorID      string         `bson:"authorId" json:"authorId"`
	GoalIDs       []string       `bson:"goalIds" json:"goalIds"`
	Content       string         `bson:"content" json:"content"`
	ExternalLinks []ExternalLink `bson:"externalLinks" json:"externalLinks"`
	Date          time.Time      `bson:"date" json:"date"`
	// Supports is a denormalized counter maintained by the cheers trigger.
	Supports int    `bson:"supports" json:"supports"`
	Cover    string `bson:"cover,omitempty" json:"cover,omitempty"`
}

type Idea struct {
	ID             string         `bson:"id" json:"id"`
	Title          string         `bson:"title" json:"title"`
	Author         User           `bson:"author" json:"author"`
	Goals          []Goal         `bson:"goals" json:"goals"`
	Content        string         `bson:"content" json:"content"`
	ExternalLinks  []ExternalLink `bson:"externalLinks" json:"externalLinks"`
	Date           time.Time      `bson:"date" json:"date"`
	Supports       int            `bson:"supports" json:"supports"`
	Cover          string         `bson:"cover,omitempty" json:"cover,omitempty"`
	UserHasCheered bool           `bson:"userHasCheered" json:"userHasCheered"`
}

type Goal struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Order int    `bson:"order" json:"order"`
	Icon  string `bson:"icon,omitempty" json:"icon,omitempty"`
	Color string `bson:"color,omitempty" json:"color,omitempty"`
}
