package convo

import "time"

// Conversation belongs to a user and may reference a saved link. The
// reference is soft: deleting the link leaves the conversation intact.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	UserID    uint64    `gorm:"index;not null" json:"-"`
	LinkID    *string   `gorm:"size:26;index" json:"link_id,omitempty"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"size:26;not null;index:idx_msg_user_convo,priority:2;index:uniq_msg_idempo,unique,priority:2" json:"conversation_id"`
	UserID         uint64    `gorm:"not null;index:idx_msg_user_convo,priority:1;index:uniq_msg_idempo,unique,priority:1" json:"-"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IdempotencyKey *string   `gorm:"type:varchar(128);index:uniq_msg_idempo,unique,priority:3" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }
