package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/pkg/logger"
)

// FileRemover 删除已保存的上传文件（media.Storage 实现）
type FileRemover interface {
	Remove(name string) error
}

type removeJob struct {
	name  string
	enqAt time.Time
}

// MediaJanitor 异步删除不再被帖子引用的上传文件；失败只记日志
type MediaJanitor struct {
	remover   FileRemover
	ch        chan removeJob
	metricsCh chan time.Duration
	wg        sync.WaitGroup
}

func NewMediaJanitor(remover FileRemover, queueSize int) *MediaJanitor {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MediaJanitor{remover: remover, ch: make(chan removeJob, queueSize), metricsCh: make(chan time.Duration, 1024)}
}

// Start 启动 workers 个协程；返回的停止函数会先排空队列（受 ctx 约束）
func (j *MediaJanitor) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 1
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			for {
				select {
				case job := <-j.ch:
					j.handle(job)
				case <-stopCh:
					// 退出前处理完已入队的任务
					for {
						select {
						case job := <-j.ch:
							j.handle(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		done := make(chan struct{})
		go func() { j.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (j *MediaJanitor) handle(job removeJob) {
	if err := j.remover.Remove(job.name); err != nil {
		logger.Warn("remove upload failed", zap.String("file", job.name), zap.Error(err))
	}
	select {
	case j.metricsCh <- time.Since(job.enqAt):
	default:
	}
}

// EnqueueRemove 非阻塞入队；队列满时丢弃
func (j *MediaJanitor) EnqueueRemove(name string) {
	if j == nil || name == "" {
		return
	}
	select {
	case j.ch <- removeJob{name: name, enqAt: time.Now()}:
	default:
		logger.Warn("janitor queue full, drop remove", zap.String("file", name))
	}
}

// Metrics 返回每次删除完成耗时的只读通道
func (j *MediaJanitor) Metrics() <-chan time.Duration { return j.metricsCh }

// QueueLen 当前队列长度（采样值）
func (j *MediaJanitor) QueueLen() int { return len(j.ch) }
