package main

import (
	"context"
	"log"
	"sync"
	"time"

	"wcl_check/metrics"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var (
	queueLock sync.Mutex
	queue     = make([]*queueData, 0, 16)
	queueWake = make(chan struct{}, 1)
)

// queueData is one pending analysis. The websocket handler and the REST job
// runner both enqueue these; only the callbacks differ.
type queueData struct {
	req RequestData
	ctx context.Context

	start    func()
	progress func(format string, args ...interface{})
	reorder  func(order int)

	chanResp chan *queueResult
}

type queueResult struct {
	data jsoniter.RawMessage
	err  error
}

func enqueue(q *queueData) {
	queueLock.Lock()
	if len(queue) == 0 {
		select {
		case queueWake <- struct{}{}:
		default:
		}
	}
	queue = append(queue, q)
	order := len(queue)
	queueLock.Unlock()

	metrics.QueueDepth.Inc()

	if q.reorder != nil {
		q.reorder(order)
	}
}

func queueWorker() {
	var q *queueData

	for {
		q = nil

		queueLock.Lock()
		if len(queue) > 0 {
			q = queue[0]

			if len(queue) > 1 {
				copy(queue, queue[1:])
				for i, waiting := range queue[:len(queue)-1] {
					if waiting.reorder != nil {
						go waiting.reorder(i + 1)
					}
				}
			}
			queue = queue[:len(queue)-1]
		}
		queueLock.Unlock()
		if q == nil {
			<-queueWake
			continue
		}

		metrics.QueueDepth.Dec()

		if q.ctx.Err() != nil {
			q.chanResp <- &queueResult{err: q.ctx.Err()}
			continue
		}

		if q.start != nil {
			q.start()
		}

		log.Printf("start: %s %s", q.req.Service, q.req.Report)
		began := time.Now()
		resp, err := runAnalysis(q.ctx, &q.req, q.progress)
		took := time.Since(began)
		metrics.JobDuration.Observe(took.Seconds())
		log.Printf("end: %s %s (%s)", q.req.Service, q.req.Report, took.Round(time.Millisecond))

		if err != nil {
			metrics.ReportErrors.WithLabelValues(q.req.Service).Inc()
			log.Printf("%+v\n", errors.WithStack(err))
			q.chanResp <- &queueResult{err: err}
			continue
		}

		raw, err := jsoniter.Marshal(resp)
		if err != nil {
			metrics.ReportErrors.WithLabelValues(q.req.Service).Inc()
			log.Printf("%+v\n", errors.WithStack(err))
			q.chanResp <- &queueResult{err: err}
			continue
		}

		metrics.ReportsComputed.WithLabelValues(q.req.Service).Inc()
		if q.progress != nil {
			q.progress("result ready (%s)", humanize.Bytes(uint64(len(raw))))
		}

		csResults.Save(q.req.Hash(), raw)

		q.chanResp <- &queueResult{data: raw}
	}
}
