package revive

import (
	"context"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

func (r *Reviver) Idea(ctx context.Context, db model.DbIdea, viewerID string) (model.Idea, error) {
	ideas, err := r.Ideas(ctx, []model.DbIdea{db}, viewerID)
	if err != nil {
		return model.Idea{}, err
	}
	return ideas[0], nil
}

func (r *Reviver) Ideas(ctx context.Context, dbs []model.DbIdea, viewerID string) ([]model.Idea, error) {
	if len(dbs) == 0 {
		return []model.Idea{}, nil
	}
	authorIDs := []string{}
	goalIDs := []string{}
	ideaIDs := []string{}
	for _, db := range dbs {
		authorIDs = append(authorIDs, db.AuthorID)
		goalIDs = append(goalIDs, db.GoalIDs...)
		ideaIDs = append(ideaIDs, db.ID)
	}

	authors, err := r.lookupUsers(ctx, uniqueIDs(authorIDs), viewerID)
	if err != nil {
		return nil, err
	}
	goals, err := store.GetDocuments[model.Goal](
		ctx, r.store, "goals", nil,
		store.Filter{Field: "id", Operator: store.FilterIn, Value: uniqueIDs(goalIDs)},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve goals")
	}
	goalsByID := map[string]model.Goal{}
	for _, goal := range goals {
		goalsByID[goal.ID] = goal
	}

	// The viewer's own cheers, to flag ideas they already support.
	cheered := map[string]bool{}
	if viewerID != "" {
		cheers, err := store.GetDocuments[model.Cheer](
			ctx, r.store, "cheers", nil,
			store.Filter{Field: "ideaId", Operator: store.FilterIn, Value: uniqueIDs(ideaIDs)},
			store.Filter{Field: "authorId", Operator: store.FilterEq, Value: viewerID},
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve cheers")
		}
		for _, cheer := range cheers {
			cheered[cheer.IdeaID] = true
		}
	}

	ideas := make([]model.Idea, 0, len(dbs))
	for _, db := range dbs {
		var idea model.Idea
		if err := copier.Copy(&idea, &db); err != nil {
			return nil, errors.Wrap(err, "failed to copy idea")
		}
		idea.Author = authors[db.AuthorID]
		idea.Goals = []model.Goal{}
		for _, goalID := range db.GoalIDs {
			if goal, ok := goalsByID[goalID]; ok {
				idea.Goals = append(idea.Goals, goal)
			}
		}
		idea.UserHasCheered = cheered[db.ID]
		ideas = append(ideas, idea)
	}
	return ideas, nil
}

func (r *Reviver) Comments(ctx context.Context, dbs []model.DbComment, viewerID string) ([]model.Comment, error) {
	if len(dbs) == 0 {
		return []model.Comment{}, nil
	}
	authorIDs := []string{}
	commentIDs := []string{}
	for _, db := range dbs {
		authorIDs = append(authorIDs, db.AuthorID)
		commentIDs = append(commentIDs, db.ID)
	}
	authors, err := r.lookupUsers(ctx, uniqueIDs(authorIDs), viewerID)
	if err != nil {
		return nil, err
	}
	votes := map[string]int{}
	if viewerID != "" {
		viewerVotes, err := store.GetDocuments[model.Vote](
			ctx, r.store, "votes", nil,
			store.Filter{Field: "commentId", Operator: store.FilterIn, Value: uniqueIDs(commentIDs)},
			store.Filter{Field: "authorId", Operator: store.FilterEq, Value: viewerID},
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve votes")
		}
		for _, vote := range viewerVotes {
			votes[vote.CommentID] = vote.Value
		}
	}

	comments := make([]model.Comment, 0, len(dbs))
	for _, db := range dbs {
		var comment model.Comment
		if err := copier.Copy(&comment, &db); err != nil {
			return nil, errors.Wrap(err, "failed to copy comment")
		}
		comment.Author = authors[db.AuthorID]
		if value, ok := votes[db.ID]; ok {
			value := value
			comment.UserVote = &value
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

func (r *Reviver) Message(ctx context.Context, db model.DbMessage) (model.Message, error) {
	messages, err := r.Messages(ctx, []model.DbMessage{db})
	if err != nil {
		return model.Message{}, err
	}
	return messages[0], nil
}

func (r *Reviver) Messages(ctx context.Context, dbs []model.DbMessage) ([]model.Message, error) {
	if len(dbs) == 0 {
		return []model.Message{}, nil
	}
	authorIDs := []string{}
	for _, db := range dbs {
		authorIDs = append(authorIDs, db.AuthorID)
	}
	authors, err := r.lookupUsers(ctx, uniqueIDs(authorIDs), "")
	if err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(dbs))
	for _, db := range dbs {
		var message model.Message
		if err := copier.Copy(&message, &db); err != nil {
			return nil, errors.Wrap(err, "failed to copy message")
		}
		message.Author = authors[db.AuthorID]
		messages = append(messages, message)
	}
	return messages, nil
}

func (r *Reviver) Discussion(ctx context.Context, db model.DbDiscussion) (model.Discussion, error) {
	discussions, err := r.Discussions(ctx, []model.DbDiscussion{db})
	if err != nil {
		return model.Discussion{}, err
	}
	return discussions[0], nil
}

func (r *Reviver) Discussions(ctx context.Context, dbs []model.DbDiscussion) ([]model.Discussion, error) {
	if len(dbs) == 0 {
		return []model.Discussion{}, nil
	}
	messageIDs := []string{}
	userIDs := []string{}
	for _, db := range dbs {
		if db.LastMessageID != "" {
			messageIDs = append(messageIDs, db.LastMessageID)
		}
		userIDs = append(userIDs, db.UserIDs...)
	}

	dbMessages := []model.DbMessage{}
	if len(messageIDs) > 0 {
		var err error
		dbMessages, err = store.GetDocuments[model.DbMessage](
			ctx, r.store, "messages", nil,
			store.Filter{Field: "id", Operator: store.FilterIn, Value: uniqueIDs(messageIDs)},
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve last messages")
		}
	}
	for _, dbMessage := range dbMessages {
		userIDs = append(userIDs, dbMessage.AuthorID)
	}

	users, err := r.lookupUsers(ctx, uniqueIDs(userIDs), "")
	if err != nil {
		return nil, err
	}

	messagesByID := map[string]model.Message{}
	for _, dbMessage := range dbMessages {
		var message model.Message
		if err := copier.Copy(&message, &dbMessage); err != nil {
			return nil, errors.Wrap(err, "failed to copy message")
		}
		message.Author = users[dbMessage.AuthorID]
		messagesByID[dbMessage.ID] = message
	}

	discussions := make([]model.Discussion, 0, len(dbs))
	for _, db := range dbs {
		var discussion model.Discussion
		if err := copier.Copy(&discussion, &db); err != nil {
			return nil, errors.Wrap(err, "failed to copy discussion")
		}
		discussion.Users = []model.User{}
		for _, userID := range db.UserIDs {
			discussion.Users = append(discussion.Users, users[userID])
		}
		if message, ok := messagesByID[db.LastMessageID]; ok {
			message := message
			discussion.LastMessage = &message
		}
		discussions = append(discussions, discussion)
	}
	return discussions, nil
}

func (r *Reviver) Notification(ctx context.Context, db model.DbNotification) (model.Notification, error) {
	notifications, err := r.Notifications(ctx, []model.DbNotification{db})
	if err != nil {
		return model.Notification{}, err
	}
	return notifications[0], nil
}

func (r *Reviver) Notifications(ctx context.Context, dbs []model.DbNotification) ([]model.Notification, error) {
	if len(dbs) == 0 {
		return []model.Notification{}, nil
	}
	fromIDs := []string{}
	for _, db := range dbs {
		fromIDs = append(fromIDs, db.FromID)
	}
	users, err := r.lookupUsers(ctx, uniqueIDs(fromIDs), "")
	if err != nil {
		return nil, err
	}
	notifications := make([]model.Notification, 0, len(dbs))
	for _, db := range dbs {
		var notification model.Notification
		if err := copier.Copy(&notification, &db); err != nil {
			return nil, errors.Wrap(err, "failed to copy notification")
		}
		notification.From = users[db.FromID]
		notification.Content = replaceFromName(db.Content, notification.From)
		notifications = append(notifications, notification)
	}
	return notifications, nil
}
