package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[coords.ChunkCoord]bool)

	p := New(2, func(ctx context.Context, job Job) Result {
		mu.Lock()
		seen[job.Chunk] = true
		mu.Unlock()
		return Result{Job: job}
	})
	defer p.Close()

	coordsToSubmit := []coords.ChunkCoord{{X: 0}, {X: 1}, {X: 2}}
	for _, c := range coordsToSubmit {
		p.Submit(Job{Kind: JobCollapse, Chunk: c, Priority: 1})
	}

	for range coordsToSubmit {
		select {
		case <-p.Results():
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for a result")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, c := range coordsToSubmit {
		if !seen[c] {
			t.Fatalf("expected job for %v to have run", c)
		}
	}
}

func TestPoolRunsHigherPriorityJobsFirst(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var order []coords.ChunkCoord
	var mu sync.Mutex

	p := New(1, func(ctx context.Context, job Job) Result {
		if job.Chunk == (coords.ChunkCoord{X: 0}) {
			close(started)
			<-release // hold the single worker until both jobs are queued
		}
		mu.Lock()
		order = append(order, job.Chunk)
		mu.Unlock()
		return Result{Job: job}
	})
	defer p.Close()

	p.Submit(Job{Kind: JobCollapse, Chunk: coords.ChunkCoord{X: 0}, Priority: 1})
	<-started
	p.Submit(Job{Kind: JobCollapse, Chunk: coords.ChunkCoord{X: 1}, Priority: 5})
	p.Submit(Job{Kind: JobCollapse, Chunk: coords.ChunkCoord{X: 2}, Priority: 1})
	close(release)

	for i := 0; i < 3; i++ {
		select {
		case <-p.Results():
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for results")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[1] != (coords.ChunkCoord{X: 1}) {
		t.Fatalf("expected the higher-priority job to run second (right after the held job), got %v", order)
	}
}

func TestCancelChunkCancelsInFlightJob(t *testing.T) {
	started := make(chan struct{})
	p := New(1, func(ctx context.Context, job Job) Result {
		close(started)
		<-ctx.Done()
		return Result{Job: job, Err: ctx.Err()}
	})
	defer p.Close()

	target := coords.ChunkCoord{X: 5}
	p.Submit(Job{Kind: JobCollapse, Chunk: target, Priority: 1})
	<-started
	p.CancelChunk(target)

	select {
	case res := <-p.Results():
		if res.Err == nil {
			t.Fatalf("expected a cancellation error after CancelChunk")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the cancelled job's result")
	}
}
