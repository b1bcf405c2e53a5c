package link

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Link is a saved URL owned by a user. The (user_id, url) pair is
// unique: intake is idempotent and re-submitting a URL returns the
// existing row. The retry count is not persisted here; it rides the
// queue message across scheduled attempts.
type Link struct {
	ID     string `gorm:"primaryKey;size:26" json:"id"` // ULID
	UserID uint64 `gorm:"not null;index:uniq_link_user_url,unique,priority:1" json:"-"`
	URL    string `gorm:"type:varchar(512);not null;index:uniq_link_user_url,unique,priority:2" json:"url"`

	Title       string `gorm:"type:varchar(512);not null" json:"title"`
	Favicon     string `gorm:"type:varchar(512)" json:"favicon,omitempty"`
	Description string `gorm:"type:varchar(1024)" json:"description,omitempty"`

	Status           Status     `gorm:"type:varchar(16);index;not null" json:"status"`
	ProcessedContent string     `gorm:"type:longtext" json:"processed_content,omitempty"`
	ContentSummary   string     `gorm:"type:text" json:"content_summary,omitempty"`
	TopicDescription string     `gorm:"type:varchar(255)" json:"topic_description,omitempty"`
	KeyPoints        []string   `gorm:"serializer:json;type:text" json:"key_points,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	LastError        string     `gorm:"type:text" json:"-"`

	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Link) TableName() string { return "links" }

// ExtractJob is the queue message for one extraction attempt.
type ExtractJob struct {
	LinkID     string `json:"link_id"`
	UserID     uint64 `json:"user_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	RetryCount int    `json:"retry_count"`
}
