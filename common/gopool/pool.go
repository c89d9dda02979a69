package gopool

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/automaxprocs/maxprocs"
)

// Contracts are heavy jobs, a worker is worth it from this many upwards.
var minTasksPerThread = 2

// Pool runs compile jobs on a bounded set of goroutines and lets the caller
// wait for all of them.
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// antsLogger routes the pool's own diagnostics to the structured logger.
type antsLogger struct{}

func (antsLogger) Printf(format string, args ...interface{}) {
	log.Warn("Worker pool", "msg", fmt.Sprintf(format, args...))
}

// FitQuota lowers GOMAXPROCS to the CPU quota of the container the process
// runs in, if any. The returned function restores the previous value.
func FitQuota() (func(), error) {
	return maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug("Worker pool", "msg", fmt.Sprintf(format, args...))
	}))
}

// New creates a pool with the given number of workers. A non-positive size
// means one worker per usable CPU.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(size,
		ants.WithExpiryDuration(10*time.Second),
		ants.WithLogger(antsLogger{}),
		ants.WithPanicHandler(func(r interface{}) {
			log.Error("Worker panicked", "err", r)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: pool}, nil
}

// Go submits a task. Submission blocks while every worker is busy.
func (p *Pool) Go(task func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
	}
	return err
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Running returns the number of the currently running goroutines.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap returns the capacity of the pool.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release closes the pool. Tasks submitted afterwards fail.
func (p *Pool) Release() {
	p.pool.Release()
}

// Threads returns a worker count suited for the number of tasks, capped at
// GOMAXPROCS.
func Threads(tasks int) int {
	threads := tasks / minTasksPerThread
	if procs := runtime.GOMAXPROCS(0); threads > procs {
		threads = procs
	} else if threads == 0 {
		threads = 1
	}
	return threads
}
