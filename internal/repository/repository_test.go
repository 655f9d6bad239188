package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/postboard/config"
	"github.com/d60-Lab/postboard/internal/model"
	"github.com/d60-Lab/postboard/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedUser(t *testing.T, repo UserRepository, name string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.New().String(), Username: name, Email: name + "@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func seedPost(t *testing.T, repo PostRepository, authorID, content string, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{ID: uuid.New().String(), AuthorID: authorID, Content: content, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestUserRepository_Duplicate(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedUser(t, repo, "alice")
	err := repo.Create(ctx, &model.User{ID: uuid.New().String(), Username: "alice", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.ExistsByUsernameOrEmail(ctx, "nobody", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_ResetToken(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := seedUser(t, repo, "alice")

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "hash-1", now.Add(time.Hour)))
	// 覆盖旧令牌
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "hash-2", now.Add(time.Hour)))

	_, err := repo.ConsumeResetToken(ctx, "hash-1", now, "new")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.ConsumeResetToken(ctx, "hash-2", now.Add(30*time.Minute), "new")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.PasswordHash)
	assert.Nil(t, stored.ResetToken)
	assert.Nil(t, stored.ResetTokenExpiresAt)

	_, err = repo.ConsumeResetToken(ctx, "hash-2", now.Add(30*time.Minute), "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_ResetTokenExpiry(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := seedUser(t, repo, "alice")

	expires := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "hash", expires))

	_, err := repo.ConsumeResetToken(ctx, "hash", expires, "new")
	assert.ErrorIs(t, err, ErrNotFound, "token is invalid at its expiry instant")

	_, err = repo.ConsumeResetToken(ctx, "hash", expires.Add(-time.Second), "new")
	assert.NoError(t, err)
}

func TestPostRepository_ListOrder(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	alice := seedUser(t, users, "alice")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := seedPost(t, posts, alice.ID, "first", base)
	p2 := seedPost(t, posts, alice.ID, "second", base.Add(time.Minute))

	list, err := posts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p2.ID, list[0].ID)
	assert.Equal(t, p1.ID, list[1].ID)
	assert.Equal(t, alice.ID, list[0].AuthorID)
}

func TestPostRepository_UpdateAndDeleteOwned(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	p := seedPost(t, posts, alice.ID, "hello", time.Now())

	ok, err := posts.UpdateOwned(ctx, p.ID, bob.ID, map[string]any{"content": "hacked"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = posts.UpdateOwned(ctx, p.ID, alice.ID, map[string]any{"content": "edited"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, posts.AppendComment(ctx, &model.Comment{ID: uuid.New().String(), PostID: p.ID, AuthorID: bob.ID, Text: "hi", CreatedAt: time.Now()}))

	ok, err = posts.DeleteOwned(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = posts.DeleteOwned(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var likes, comments int64
	require.NoError(t, db.Model(&model.PostLike{}).Where("post_id = ?", p.ID).Count(&likes).Error)
	require.NoError(t, db.Model(&model.Comment{}).Where("post_id = ?", p.ID).Count(&comments).Error)
	assert.Zero(t, likes)
	assert.Zero(t, comments)
}

func TestPostRepository_ToggleLike(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	p := seedPost(t, posts, alice.ID, "hello", time.Now())

	liked, count, err := posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count)

	liked, count, err = posts.ToggleLike(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(2), count)

	liked, count, err = posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(1), count)

	_, _, err = posts.ToggleLike(ctx, "missing", bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostRepository_ToggleLikeConcurrent(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	p := seedPost(t, posts, alice.ID, "hello", time.Now())

	const n = 8
	voters := make([]*model.User, n)
	for i := range voters {
		voters[i] = seedUser(t, users, fmt.Sprintf("voter%d", i))
	}

	// 每个用户并发翻转两次，最终应回到未点赞
	var wg sync.WaitGroup
	for _, v := range voters {
		for k := 0; k < 2; k++ {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				_, _, err := posts.ToggleLike(ctx, p.ID, uid)
				assert.NoError(t, err)
			}(v.ID)
		}
	}
	wg.Wait()

	likes, err := posts.LikesOf(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.Empty(t, likes[p.ID])
}

func TestPostRepository_CommentOrder(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	p := seedPost(t, posts, alice.ID, "hello", time.Now())

	at := time.Now()
	c1 := &model.Comment{ID: uuid.New().String(), PostID: p.ID, AuthorID: bob.ID, Text: "one", CreatedAt: at}
	c2 := &model.Comment{ID: uuid.New().String(), PostID: p.ID, AuthorID: alice.ID, Text: "two", CreatedAt: at}
	require.NoError(t, posts.AppendComment(ctx, c1))
	require.NoError(t, posts.AppendComment(ctx, c2))

	err := posts.AppendComment(ctx, &model.Comment{ID: uuid.New().String(), PostID: "missing", AuthorID: bob.ID, Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	byPost, err := posts.CommentsOf(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, byPost[p.ID], 2)
	assert.Equal(t, "one", byPost[p.ID][0].Text)
	assert.Equal(t, bob.ID, byPost[p.ID][0].AuthorID)
	assert.Equal(t, "two", byPost[p.ID][1].Text)
}

func TestPostRepository_StatsByAuthor(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := seedPost(t, posts, alice.ID, "one", base)
	p2 := seedPost(t, posts, alice.ID, "two", base.Add(time.Hour))
	seedPost(t, posts, bob.ID, "bob's", base)

	_, _, err := posts.ToggleLike(ctx, p1.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, posts.AppendComment(ctx, &model.Comment{ID: uuid.New().String(), PostID: p2.ID, AuthorID: bob.ID, Text: "a"}))
	require.NoError(t, posts.AppendComment(ctx, &model.Comment{ID: uuid.New().String(), PostID: p2.ID, AuthorID: bob.ID, Text: "b"}))

	stats, err := posts.StatsByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, PostStats{ID: p2.ID, Content: "two", CreatedAt: stats[0].CreatedAt, Likes: 0, Comments: 2}, stats[0])
	assert.Equal(t, int64(1), stats[1].Likes)
	assert.Equal(t, int64(0), stats[1].Comments)
}
