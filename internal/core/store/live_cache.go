// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"sync"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// LiveCache holds jobs that are still in flight. Progress updates go here
// only; the durable store sees a job at submission and at its terminal state.
//
// A given job id has a single writer (its worker). Readers may be many.
type LiveCache interface {
	Get(id string) (model.Job, bool)
	Upsert(job model.Job)
	Remove(id string)
	Len() int
}

// MemoryCache is a process-local LiveCache. Values are copied in and out so
// callers never share a Job with the worker.
type MemoryCache struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{jobs: make(map[string]model.Job)}
}

func (m *MemoryCache) Get(id string) (model.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

func (m *MemoryCache) Upsert(job model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *MemoryCache) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}
