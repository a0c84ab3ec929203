package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	jobQueued  = "queued"
	jobRunning = "running"
	jobDone    = "done"
	jobFailed  = "error"
)

// jobRecord tracks one asynchronous analysis for polling clients.
type jobRecord struct {
	lock sync.Mutex

	ID       string              `json:"id"`
	Service  string              `json:"service"`
	Status   string              `json:"status"`
	Progress string              `json:"progress,omitempty"`
	Result   jsoniter.RawMessage `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`

	created time.Time
}

func (j *jobRecord) setProgress(format string, args ...interface{}) {
	j.lock.Lock()
	j.Progress = fmt.Sprintf(format, args...)
	j.lock.Unlock()
}

func (j *jobRecord) setRunning() {
	j.lock.Lock()
	j.Status = jobRunning
	j.lock.Unlock()
}

func (j *jobRecord) finish(res *queueResult) {
	j.lock.Lock()
	if res.err != nil {
		j.Status = jobFailed
		j.Error = res.err.Error()
	} else {
		j.Status = jobDone
		j.Result = res.data
	}
	j.lock.Unlock()
}

func (j *jobRecord) snapshot() jobRecord {
	j.lock.Lock()
	defer j.lock.Unlock()

	return jobRecord{
		ID:       j.ID,
		Service:  j.Service,
		Status:   j.Status,
		Progress: j.Progress,
		Result:   j.Result,
		Error:    j.Error,
	}
}

var (
	jobsLock sync.Mutex
	jobs     = make(map[string]*jobRecord, 16)
)

func storeJob(j *jobRecord) {
	jobsLock.Lock()
	defer jobsLock.Unlock()

	for id, old := range jobs {
		if time.Since(old.created) > cfg.JobTTL {
			delete(jobs, id)
		}
	}
	jobs[j.ID] = j
}

func loadJob(id string) *jobRecord {
	jobsLock.Lock()
	defer jobsLock.Unlock()

	return jobs[id]
}

func routeJobSubmit(c *gin.Context) {
	var req RequestData
	if err := c.ShouldBindJSON(&req); err != nil || !req.CheckOptionValidation() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var raw jsoniter.RawMessage
	if csResults.Load(req.Hash(), &raw) {
		c.JSON(http.StatusOK, gin.H{"status": jobDone, "result": raw})
		return
	}

	job := &jobRecord{
		ID:      uuid.NewString(),
		Service: req.Service,
		Status:  jobQueued,
		created: time.Now(),
	}
	storeJob(job)

	go func() {
		q := &queueData{
			req:      req,
			ctx:      context.Background(),
			start:    job.setRunning,
			progress: job.setProgress,
			chanResp: make(chan *queueResult, 1),
		}
		enqueue(q)
		job.finish(<-q.chanResp)
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": jobQueued})
}

func routeJobStatus(c *gin.Context) {
	job := loadJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}

	c.JSON(http.StatusOK, job.snapshot())
}

func routeAnalyzeSync(c *gin.Context) {
	var req RequestData
	if err := c.ShouldBindJSON(&req); err != nil || !req.CheckOptionValidation() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var raw jsoniter.RawMessage
	if csResults.Load(req.Hash(), &raw) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	q := &queueData{
		req:      req,
		ctx:      c.Request.Context(),
		chanResp: make(chan *queueResult, 1),
	}
	enqueue(q)

	res := <-q.chanResp
	if res.err != nil {
		c.JSON(statusOfError(res.err), gin.H{"error": res.err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", res.data)
}
