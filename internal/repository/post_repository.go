package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/postboard/internal/model"
)

// PostStats 单个帖子的互动统计
type PostStats struct {
	ID        string
	Content   string
	CreatedAt time.Time
	Likes     int64
	Comments  int64
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// List 按创建时间倒序返回全部帖子
	List(ctx context.Context) ([]*model.Post, error)
	// UpdateOwned 仅当 author_id 匹配时更新，返回是否命中
	UpdateOwned(ctx context.Context, id, authorID string, fields map[string]any) (bool, error)
	// DeleteOwned 删除帖子及其评论、点赞，返回是否命中
	DeleteOwned(ctx context.Context, id, authorID string) (bool, error)
	// ToggleLike 在帖子行锁内翻转 (post, user) 的点赞成员关系
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, count int64, err error)
	// AppendComment 在帖子行锁内追加评论
	AppendComment(ctx context.Context, c *model.Comment) error
	LikesOf(ctx context.Context, postIDs []string) (map[string][]string, error)
	CommentsOf(ctx context.Context, postIDs []string) (map[string][]*model.Comment, error)
	StatsByAuthor(ctx context.Context, authorID string) ([]PostStats, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error)
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&res).Error
	return res, err
}

func (r *postRepository) UpdateOwned(ctx context.Context, id, authorID string, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) DeleteOwned(ctx context.Context, id, authorID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND author_id = ?", id, authorID).Delete(&model.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&model.PostLike{}).Error
	})
	return deleted, err
}

// lockPost 对帖子行加写锁（sqlite 方言会忽略 FOR UPDATE，靠单写者串行化）
func lockPost(tx *gorm.DB, postID string) error {
	var p model.Post
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", postID).
		First(&p).Error
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, int64, error) {
	var (
		liked bool
		count int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := &model.PostLike{PostID: postID, UserID: userID, CreatedAt: time.Now()}
			if err := tx.Omit(clause.Associations).Create(like).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&model.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	})
	if err != nil {
		return false, 0, translate(err)
	}
	return liked, count, nil
}

func (r *postRepository) AppendComment(ctx context.Context, c *model.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, c.PostID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(c).Error
	})
	return translate(err)
}

func (r *postRepository) LikesOf(ctx context.Context, postIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []model.PostLike
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, l := range rows {
		out[l.PostID] = append(out[l.PostID], l.UserID)
	}
	return out, nil
}

func (r *postRepository) CommentsOf(ctx context.Context, postIDs []string) (map[string][]*model.Comment, error) {
	out := make(map[string][]*model.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []*model.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}

func (r *postRepository) StatsByAuthor(ctx context.Context, authorID string) ([]PostStats, error) {
	var rows []PostStats
	err := r.db.WithContext(ctx).
		Table("posts AS p").
		Select(`p.id, p.content, p.created_at,
			(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes,
			(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments`).
		Where("p.author_id = ?", authorID).
		Order("p.created_at DESC").
		Scan(&rows).Error
	return rows, err
}
