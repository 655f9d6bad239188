package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/postboard/config"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/model"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/internal/service"
	"github.com/d60-Lab/postboard/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// likebench: N 个用户并发对同一帖子点赞，每人翻转 TOGGLES 次，
// 最后校验点赞数 == 翻转次数为奇数的用户数，且无重复点赞。
// 第二阶段并发删除 MEDIA 个带上传文件的帖子，统计 MediaJanitor 的清理延迟。
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	defer database.Close(db)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	ctx := context.Background()

	N := envInt("N", 500)
	CONC := envInt("CONC", 16)
	TOGGLES := envInt("TOGGLES", 3)
	MEDIA := envInt("MEDIA", 200)

	// seed
	author := &model.User{ID: uuid.NewString(), Username: "bench-" + uuid.NewString()[:8], PasswordHash: "x"}
	author.Email = author.Username + "@bench.local"
	if err := userRepo.Create(ctx, author); err != nil {
		panic(err)
	}
	post := &model.Post{ID: uuid.NewString(), AuthorID: author.ID, Content: "likebench"}
	if err := postRepo.Create(ctx, post); err != nil {
		panic(err)
	}
	users := make([]string, N)
	for i := range users {
		u := &model.User{ID: uuid.NewString(), PasswordHash: "x"}
		u.Username = "bench-" + u.ID[:12]
		u.Email = u.Username + "@bench.local"
		if err := userRepo.Create(ctx, u); err != nil {
			panic(err)
		}
		users[i] = u.ID
	}

	feed := make(chan string, N*TOGGLES)
	for r := 0; r < TOGGLES; r++ {
		for _, id := range users {
			feed <- id
		}
	}
	close(feed)

	workers := CONC
	if workers > N*TOGGLES {
		workers = N * TOGGLES
	}
	latCh := make(chan time.Duration, N*TOGGLES)
	errCh := make(chan error, workers)
	t0 := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			var firstErr error
			for id := range feed {
				st := time.Now()
				if _, _, err := postRepo.ToggleLike(ctx, post.ID, id); err != nil && firstErr == nil {
					firstErr = err
				}
				latCh <- time.Since(st)
			}
			errCh <- firstErr
		}()
	}
	var failures int
	for w := 0; w < workers; w++ {
		if err := <-errCh; err != nil {
			failures++
			fmt.Printf("worker error: %v\n", err)
		}
	}
	total := time.Since(t0)
	close(latCh)
	lats := make([]time.Duration, 0, N*TOGGLES)
	for d := range latCh {
		lats = append(lats, d)
	}

	likes := must(postRepo.LikesOf(ctx, []string{post.ID}))[post.ID]
	seen := make(map[string]struct{}, len(likes))
	for _, id := range likes {
		seen[id] = struct{}{}
	}
	want := 0
	if TOGGLES%2 == 1 {
		want = N
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(math.Ceil(p*float64(len(xs)))) - 1
		if k < 0 {
			k = 0
		}
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	fmt.Printf("driver=%s N=%d CONC=%d TOGGLES=%d\n", cfg.Database.Driver, N, CONC, TOGGLES)
	fmt.Printf("toggle total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		total, total/time.Duration(len(lats)), pct(lats, 0.50), pct(lats, 0.95), pct(lats, 0.99))
	fmt.Printf("likes: got=%d distinct=%d want=%d worker_errors=%d\n", len(likes), len(seen), want, failures)
	if len(likes) != want || len(seen) != len(likes) {
		fmt.Println("INVARIANT VIOLATED")
		os.Exit(1)
	}
	fmt.Println("invariant ok")

	// media cleanup
	storage := must(media.NewStorage(cfg.Upload.Dir, cfg.Upload.MaxBytes))
	resolver := media.NewResolver(cfg.Server.PublicURL, cfg.Upload.URLPrefix)
	janitor := service.NewMediaJanitor(storage, MEDIA)
	stopJanitor := janitor.Start(2)
	postSvc := service.NewPostService(postRepo, userRepo, nil, resolver, janitor)

	postIDs := make([]string, MEDIA)
	files := make([]string, MEDIA)
	for i := range postIDs {
		files[i] = fmt.Sprintf("likebench-%d-%s.png", i, uuid.NewString()[:8])
		if err := os.WriteFile(filepath.Join(storage.Dir(), files[i]), []byte("bench"), 0o644); err != nil {
			panic(err)
		}
		p := must(postSvc.Create(ctx, author.ID, service.CreatePostInput{
			Content: "media",
			Media:   media.Upload{Name: files[i], MIMEType: "image/png"},
		}))
		postIDs[i] = p.ID
	}

	landing := make([]time.Duration, 0, MEDIA)
	doneMetrics := make(chan struct{})
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			select {
			case d := <-janitor.Metrics():
				landing = append(landing, d)
			case <-doneMetrics:
				for {
					select {
					case d := <-janitor.Metrics():
						landing = append(landing, d)
					default:
						return
					}
				}
			}
		}
	}()

	maxQ := 0
	quitSample := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if q := janitor.QueueLen(); q > maxQ {
					maxQ = q
				}
			case <-quitSample:
				return
			}
		}
	}()

	delFeed := make(chan string, MEDIA)
	for _, id := range postIDs {
		delFeed <- id
	}
	close(delFeed)
	delErr := make(chan error, workers)
	t2 := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			var firstErr error
			for id := range delFeed {
				if err := postSvc.Delete(ctx, id, author.ID); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			delErr <- firstErr
		}()
	}
	for w := 0; w < workers; w++ {
		if err := <-delErr; err != nil {
			fmt.Printf("delete error: %v\n", err)
		}
	}
	deleteDur := time.Since(t2)
	close(quitSample)
	<-sampled

	drainStart := time.Now()
	_ = stopJanitor(context.Background())
	drainDur := time.Since(drainStart)
	close(doneMetrics)
	<-collected

	leftover := 0
	for _, name := range files {
		if _, err := os.Stat(filepath.Join(storage.Dir(), name)); err == nil {
			leftover++
		}
	}
	fmt.Printf("media delete total: %v, posts=%d\n", deleteDur, MEDIA)
	fmt.Printf("janitor landing: samples=%d, p50=%v, p95=%v, p99=%v, maxQueue=%d, drain=%v, leftover_files=%d\n",
		len(landing), pct(landing, 0.50), pct(landing, 0.95), pct(landing, 0.99), maxQ, drainDur, leftover)
	if leftover != 0 {
		fmt.Println("UPLOADS NOT CLEANED")
		os.Exit(1)
	}
}
