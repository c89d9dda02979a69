// Package log holds the file sink the command line tool writes its logs to.
package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/metrics"
	"gopkg.in/natefinch/lumberjack.v2"
)

var droppedCounter = metrics.NewRegisteredCounter("log/dropped", nil)

// AsyncFileWriter appends records to a rolling file from a background
// goroutine. A record written while the queue is full is dropped rather
// than blocking the caller.
type AsyncFileWriter struct {
	sink *lumberjack.Logger

	wg      sync.WaitGroup
	started atomic.Bool
	queue   chan []byte
	stop    chan struct{}
}

// NewAsyncFileWriter creates a writer for the given path. The file rolls
// over once it outgrows maxSize megabytes and the newest keep backups are
// retained, zero meaning all of them. A maxSize of zero falls back to the
// 100 megabyte default of the rolling sink.
func NewAsyncFileWriter(path string, maxSize int, keep int, queueLen int) (*AsyncFileWriter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("log file path %q: %w", path, err)
	}
	if maxSize < 0 || keep < 0 {
		return nil, fmt.Errorf("log file %q: negative size %d or backup count %d", path, maxSize, keep)
	}
	if queueLen <= 0 {
		queueLen = 1024
	}
	return &AsyncFileWriter{
		sink: &lumberjack.Logger{
			Filename:   abs,
			MaxSize:    maxSize,
			MaxBackups: keep,
			LocalTime:  true,
		},
		queue: make(chan []byte, queueLen),
		stop:  make(chan struct{}),
	}, nil
}

// Start starts the writer goroutine. The file is opened on the first record.
func (w *AsyncFileWriter) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("log writer has already been started")
	}
	w.wg.Add(1)
	go func() {
		defer func() {
			w.drain()
			if err := w.sink.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "close log file error. err=%s\n", err)
			}
			w.started.Store(false)
			w.wg.Done()
		}()
		for {
			select {
			case msg := <-w.queue:
				w.SyncWrite(msg)
			case <-w.stop:
				return
			}
		}
	}()
	return nil
}

func (w *AsyncFileWriter) drain() {
	for {
		select {
		case msg := <-w.queue:
			w.SyncWrite(msg)
		default:
			return
		}
	}
}

// SyncWrite writes a record right away. It is a no-op unless the writer
// has been started.
func (w *AsyncFileWriter) SyncWrite(msg []byte) {
	if !w.started.Load() {
		return
	}
	if _, err := w.sink.Write(msg); err != nil {
		fmt.Fprintf(os.Stderr, "write log file error. err=%s\n", err)
	}
}

// Stop flushes the queued records, closes the file and waits for the writer
// goroutine to exit.
func (w *AsyncFileWriter) Stop() {
	if !w.started.Load() {
		return
	}
	w.stop <- struct{}{}
	w.wg.Wait()
}

// Write queues a copy of the record.
func (w *AsyncFileWriter) Write(msg []byte) (int, error) {
	buf := make([]byte, len(msg))
	copy(buf, msg)

	select {
	case w.queue <- buf:
	default:
		droppedCounter.Inc(1)
	}
	return len(msg), nil
}
