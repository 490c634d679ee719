package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// Scheduler는 일정 간격으로 작업을 실행합니다.
// 작업이 에러를 반환하면 다음 실행까지 errorInterval만큼 대기합니다.
type Scheduler struct {
	interval      time.Duration
	errorInterval time.Duration
	task          Task
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval, errorInterval time.Duration, task Task) *Scheduler {
	return &Scheduler{
		interval:      interval,
		errorInterval: errorInterval,
		task:          task,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start는 스케줄러 루프를 실행합니다. 첫 작업은 즉시 실행됩니다.
func (s *Scheduler) Start(ctx context.Context) error {
	defer close(s.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			next := s.interval
			if err := s.task.Execute(ctx); err != nil {
				logrus.Errorf("작업 실행 실패: %v", err)
				// 에러가 발생해도 계속 실행하되, 대기 시간을 늘립니다
				next = s.errorInterval
			}
			timer.Reset(next)
		}
	}
}

// Stop은 스케줄러를 중지하고 루프가 완전히 종료될 때까지 대기합니다
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
