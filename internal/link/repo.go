package link

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, l *Link) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// CreateOrGetExisting inserts a link, but if a concurrent insert won
// the (user, url) unique index first it returns that row instead. The
// bool reports whether a new row was created.
func (r *Repo) CreateOrGetExisting(ctx context.Context, l *Link) (*Link, bool, error) {
	err := r.db.WithContext(ctx).Create(l).Error
	if err == nil {
		return l, true, nil
	}
	existing, getErr := r.GetByUserAndURL(ctx, l.UserID, l.URL)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Link, error) {
	var l Link
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) GetByUserAndURL(ctx context.Context, userID uint64, url string) (*Link, error) {
	var l Link
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND url = ?", userID, url).
		First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByUser returns a user's links newest first.
func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Link, error) {
	var links []Link
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *Repo) ListByStatus(ctx context.Context, status Status) ([]Link, error) {
	var links []Link
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id string, lastErr string) error {
	return r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": lastErr,
		}).Error
}

// Extracted holds the fields written on a successful extraction.
// Title and Favicon are only applied when non-empty.
type Extracted struct {
	Title     string
	Favicon   string
	Content   string
	Summary   string
	Hook      string
	KeyPoints []string
}

func (r *Repo) CompleteExtraction(ctx context.Context, id string, e Extracted) error {
	// map updates bypass gorm serializers, so marshal key points here
	kp, err := json.Marshal(e.KeyPoints)
	if err != nil {
		return err
	}
	now := time.Now()
	updates := map[string]any{
		"status":            StatusCompleted,
		"processed_content": e.Content,
		"content_summary":   e.Summary,
		"topic_description": e.Hook,
		"key_points":        string(kp),
		"processed_at":      &now,
		"last_error":        "",
	}
	if e.Title != "" {
		updates["title"] = e.Title
	}
	if e.Favicon != "" {
		updates["favicon"] = e.Favicon
	}
	return r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *Repo) SetRead(ctx context.Context, userID uint64, id string, read bool) error {
	res := r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", read)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Link{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) UserExists(ctx context.Context, userID uint64) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}
