package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/postboard/config"
	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/pkg/database"
	"github.com/d60-Lab/postboard/pkg/token"
)

// clock 可手动推进的测试时钟
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db       *gorm.DB
	clock    *clock
	users    repository.UserRepository
	posts    repository.PostRepository
	cache    *cache.UserCache
	redis    *miniredis.Miniredis
	tokens   *token.Manager
	storage  *media.Storage
	resolver *media.Resolver
	janitor  *MediaJanitor
	auth     AuthService
	session  SessionService
	post     PostService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		db:    db,
		clock: &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		users: repository.NewUserRepository(db),
		posts: repository.NewPostRepository(db),
		cache: cache.NewUserCache(client, time.Minute),
		redis: mr,
	}
	f.tokens, err = token.NewManager("test-secret", 7*24*time.Hour, token.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.storage, err = media.NewStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)
	f.resolver = media.NewResolver("http://localhost:8080", "/uploads")
	f.janitor = NewMediaJanitor(f.storage, 16)

	f.auth = NewAuthService(f.users, f.tokens, f.cache, NewLinkDelivery("http://localhost:5173/"),
		WithAuthClock(f.clock.Now), WithBcryptCost(bcrypt.MinCost), WithResetTTL(time.Hour))
	f.session = NewSessionService(f.tokens, f.users, f.cache)
	f.post = NewPostService(f.posts, f.users, f.cache, f.resolver, f.janitor)
	return f
}
