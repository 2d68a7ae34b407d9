package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/video-share-backend/internal/pkg/database"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"gorm.io/gorm"
)

// VideoPO represents the database model
type VideoPO struct {
	ID            string  `gorm:"type:uuid;primarykey"`
	Name          string  `gorm:"size:512;not null"`
	Size          int64   `gorm:"not null"`
	MediaType     string  `gorm:"column:type;size:128;not null"`
	FilePath      string  `gorm:"column:file_path;size:1024;not null;uniqueIndex:idx_videos_file_path"`
	ThumbnailPath *string `gorm:"column:thumbnail_path;size:1024"`
	PublicURL     string  `gorm:"column:public_url;size:2048;not null"`

	// no deleted_at condition: tokens of deleted videos stay reserved
	ShareToken string `gorm:"size:64;not null;uniqueIndex:idx_videos_share_token"`

	UploadDate time.Time      `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index:idx_videos_created_at,sort:desc"`
	UpdatedAt  time.Time      `gorm:"not null"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (VideoPO) TableName() string {
	return "videos"
}

func (po *VideoPO) BeforeCreate(tx *gorm.DB) error {
	if po.ID == "" {
		po.ID = uuid.NewString()
	}
	return nil
}

// Models lists the tables owned by this package, for auto migration
func Models() []interface{} {
	return []interface{}{&VideoPO{}}
}

// VideoRepo implements biz.VideoRepo interface
type VideoRepo struct {
	db *database.DB
}

func NewVideoRepo(db *database.DB) biz.VideoRepo {
	return &VideoRepo{db: db}
}

func (r *VideoRepo) Insert(ctx context.Context, v *biz.VideoRecord) (*biz.VideoRecord, error) {
	po := fromRecord(v)
	po.ID = ""

	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		return nil, translateWriteError(err)
	}
	return toRecord(po), nil
}

func (r *VideoRepo) Update(ctx context.Context, v *biz.VideoRecord) error {
	res := r.db.WithContext(ctx).Model(&VideoPO{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
		"name":           v.Name,
		"thumbnail_path": v.ThumbnailPath,
		"public_url":     v.PublicURL,
	})
	if res.Error != nil {
		return translateWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

// Delete soft-deletes the row
func (r *VideoRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&VideoPO{})
	if res.Error != nil {
		return fmt.Errorf("delete video: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

func (r *VideoRepo) FindByID(ctx context.Context, id string) (*biz.VideoRecord, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *VideoRepo) FindByShareToken(ctx context.Context, token string) (*biz.VideoRecord, error) {
	return r.first(ctx, "share_token = ?", token)
}

func (r *VideoRepo) List(ctx context.Context, filter biz.ListFilter) ([]*biz.VideoRecord, int64, error) {
	query := strings.TrimSpace(filter.Query)
	filtered := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&VideoPO{}).
			Scopes(database.WhereIf(query != "", "name ILIKE ?", database.LikePattern(query)))
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	var pos []VideoPO
	err := filtered().Scopes(
		database.OrderBy("created_at", true),
		database.Paginate(filter.Page, filter.PageSize),
	).Find(&pos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}

	records := make([]*biz.VideoRecord, len(pos))
	for i := range pos {
		records[i] = toRecord(&pos[i])
	}
	return records, total, nil
}

func (r *VideoRepo) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func (r *VideoRepo) first(ctx context.Context, query string, arg interface{}) (*biz.VideoRecord, error) {
	var po VideoPO
	if err := r.db.WithContext(ctx).Where(query, arg).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrNotFound
		}
		return nil, fmt.Errorf("find video: %w", err)
	}
	return toRecord(&po), nil
}

// translateWriteError maps unique violations. gorm's translated error drops
// the constraint name; file paths are fresh ULIDs, so an anonymous duplicate
// is the share token.
func translateWriteError(err error) error {
	if !database.IsDuplicateKeyError(err) {
		return err
	}
	switch name := database.ConstraintName(err); {
	case name == "", strings.Contains(name, "share_token"):
		return fmt.Errorf("%w: %v", biz.ErrShareTokenConflict, err)
	default:
		return fmt.Errorf("%w: %s: %v", biz.ErrConflict, name, err)
	}
}

func fromRecord(v *biz.VideoRecord) *VideoPO {
	return &VideoPO{
		ID:            v.ID,
		Name:          v.Name,
		Size:          v.Size,
		MediaType:     v.MediaType,
		FilePath:      v.StoragePath,
		ThumbnailPath: v.ThumbnailPath,
		PublicURL:     v.PublicURL,
		ShareToken:    v.ShareToken,
		UploadDate:    v.UploadDate,
	}
}

func toRecord(po *VideoPO) *biz.VideoRecord {
	return &biz.VideoRecord{
		ID:            po.ID,
		Name:          po.Name,
		Size:          po.Size,
		MediaType:     po.MediaType,
		StoragePath:   po.FilePath,
		ThumbnailPath: po.ThumbnailPath,
		PublicURL:     po.PublicURL,
		ShareToken:    po.ShareToken,
		UploadDate:    po.UploadDate,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}
}
