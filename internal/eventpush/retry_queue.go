package eventpush

import "time"

// retryQueue re-dispatches a job after a delay unless the manager has
// shut down in the meantime.
type retryQueue struct {
	out  chan<- pushJob
	done <-chan struct{}
}

func newRetryQueue(out chan<- pushJob, done <-chan struct{}) *retryQueue {
	return &retryQueue{out: out, done: done}
}

func (q *retryQueue) Enqueue(job pushJob, delay time.Duration) {
	time.AfterFunc(max(delay, 0), func() {
		select {
		case <-q.done:
		case q.out <- job:
			metricPushQueueLen.Set(int64(len(q.out)))
		}
	})
}
