package dbtypes

import "time"

// Chat is one conversation thread between a request's creator and one of
// its helpers. The thread ID is deterministic (request ID + helper ID) so
// the pair always lands in the same document.
type Chat struct {
	ChatID    string    `json:"chatId"`
	RequestID string    `json:"requestId"`
	CreatorID string    `json:"creatorId"`
	HelperID  string    `json:"helperId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Chat) ToDoc() map[string]interface{} {
	return map[string]interface{}{
		"chatId":    c.ChatID,
		"requestId": c.RequestID,
		"creatorId": c.CreatorID,
		"helperId":  c.HelperID,
		"createdAt": c.CreatedAt,
	}
}

func ChatFromDoc(data map[string]interface{}) (*Chat, error) {
	c := &Chat{}
	var err error
	if c.ChatID, err = docString(data, "chatId"); err != nil {
		return nil, err
	}
	if c.RequestID, err = docString(data, "requestId"); err != nil {
		return nil, err
	}
	if c.CreatorID, err = docString(data, "creatorId"); err != nil {
		return nil, err
	}
	if c.HelperID, err = docString(data, "helperId"); err != nil {
		return nil, err
	}
	if t, ok := data["createdAt"].(time.Time); ok {
		c.CreatedAt = t
	}
	return c, nil
}

// ChatMessage is one message inside a chat thread.
type ChatMessage struct {
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
}

func (m *ChatMessage) ToDoc() map[string]interface{} {
	return map[string]interface{}{
		"messageId": m.MessageID,
		"senderId":  m.SenderID,
		"text":      m.Text,
		"sentAt":    m.SentAt,
	}
}

func ChatMessageFromDoc(data map[string]interface{}) (*ChatMessage, error) {
	m := &ChatMessage{}
	var err error
	if m.MessageID, err = docString(data, "messageId"); err != nil {
		return nil, err
	}
	if m.SenderID, err = docString(data, "senderId"); err != nil {
		return nil, err
	}
	if m.Text, err = docString(data, "text"); err != nil {
		return nil, err
	}
	if t, ok := data["sentAt"].(time.Time); ok {
		m.SentAt = t
	}
	return m, nil
}
