package dblayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reach-out/dbtypes"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// EnsureChat returns the chat between a request's creator and one of its
// accepted helpers, creating it if needed. The chat ID is derived from the
// request and helper so concurrent calls converge on the same document.
func (db *DB) EnsureChat(ctx context.Context, callerID, requestID, helperID string) (*dbtypes.Chat, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	request, err := db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if callerID != request.CreatorID && callerID != helperID {
		return nil, fmt.Errorf("%w: chat participants are the creator and the helper", ErrUnauthorized)
	}
	if !request.HasHelper(helperID) {
		return nil, fmt.Errorf("%s on request %s: %w", helperID, requestID, ErrUserNotHelper)
	}

	chat := &dbtypes.Chat{
		ChatID:    requestID + "_" + helperID,
		RequestID: requestID,
		CreatorID: request.CreatorID,
		HelperID:  helperID,
		CreatedAt: time.Now(),
	}

	chatRef := db.client.Collection(chatsCollection).Doc(chat.ChatID)
	existing, err := chatRef.Get(ctx)
	if err == nil {
		got, err := dbtypes.ChatFromDoc(existing.Data())
		if err != nil {
			return nil, fmt.Errorf("%w: while decoding chat %s: %v", ErrInvalidArgument, chat.ChatID, err)
		}
		return got, nil
	}
	if !isStoreNotFound(err) {
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving chat %s", chat.ChatID))
	}

	if _, err := chatRef.Set(ctx, chat.ToDoc()); err != nil {
		return nil, wrapStoreError(err, fmt.Sprintf("creating chat %s", chat.ChatID))
	}
	return chat, nil
}

// SendMessage appends a message to a chat. Only the two participants may
// post.
func (db *DB) SendMessage(ctx context.Context, callerID, chatID, text string) (*dbtypes.ChatMessage, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: message text must not be empty", ErrInvalidArgument)
	}

	chat, err := db.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if callerID != chat.CreatorID && callerID != chat.HelperID {
		return nil, fmt.Errorf("%w: not a participant of chat %s", ErrUnauthorized, chatID)
	}

	msg := &dbtypes.ChatMessage{
		MessageID: uuid.NewString(),
		SenderID:  callerID,
		Text:      text,
		SentAt:    time.Now(),
	}
	msgRef := db.client.Collection(chatsCollection).Doc(chatID).Collection(messagesSubcollection).Doc(msg.MessageID)
	if _, err := msgRef.Set(ctx, msg.ToDoc()); err != nil {
		return nil, wrapStoreError(err, fmt.Sprintf("sending message to chat %s", chatID))
	}
	return msg, nil
}

// GetMessages returns a chat's messages in send order. Only the two
// participants may read.
func (db *DB) GetMessages(ctx context.Context, callerID, chatID string) ([]*dbtypes.ChatMessage, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	chat, err := db.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if callerID != chat.CreatorID && callerID != chat.HelperID {
		return nil, fmt.Errorf("%w: not a participant of chat %s", ErrUnauthorized, chatID)
	}

	iter := db.client.Collection(chatsCollection).Doc(chatID).Collection(messagesSubcollection).
		OrderBy("sentAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	msgs := []*dbtypes.ChatMessage{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, fmt.Sprintf("listing messages of chat %s", chatID))
		}

		msg, err := dbtypes.ChatMessageFromDoc(snap.Data())
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed chat message", slog.String("chat", chatID), slog.String("doc", snap.Ref.ID), slog.Any("err", err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (db *DB) getChat(ctx context.Context, chatID string) (*dbtypes.Chat, error) {
	snap, err := db.client.Collection(chatsCollection).Doc(chatID).Get(ctx)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
		}
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving chat %s", chatID))
	}

	chat, err := dbtypes.ChatFromDoc(snap.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding chat %s: %v", ErrInvalidArgument, chatID, err)
	}
	return chat, nil
}
