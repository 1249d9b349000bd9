package indexer

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer/asyncread"
	"github.com/shardmesh/searchcore/internal/indexer/segment"
)

// titleJob is a single pending title fetch.
type titleJob struct {
	docID    uint32
	userData uint64
}

// titleReader implements asyncread.DiskReader over segment doc-meta
// sidecars, fetching titles for documents whose segment has already been
// flushed (and so are no longer held in Engine's in-memory titles map). A
// fixed pool of worker goroutines does the actual file reads; each
// segment's sidecar is parsed once and cached for subsequent lookups.
type titleReader struct {
	resolve func(docID uint32) (dataDir, segmentName string, ok bool)

	jobs    chan titleJob
	results chan asyncread.ReadyItem
	failed  chan uint64

	inFlight int

	cacheMu sync.Mutex
	cache   map[string]map[uint32]string // segment name -> doc-id -> title

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// newTitleReader starts a titleReader with the given worker count. resolve
// maps a doc-id to the (dataDir, segmentName) holding its doc-meta sidecar.
func newTitleReader(workers int, resolve func(uint32) (string, string, bool)) *titleReader {
	if workers < 1 {
		workers = 1
	}
	r := &titleReader{
		resolve: resolve,
		jobs:    make(chan titleJob, workers*4),
		results: make(chan asyncread.ReadyItem, workers*4),
		failed:  make(chan uint64, workers*4),
		cache:   make(map[string]map[uint32]string),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *titleReader) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case job, ok := <-r.jobs:
			if !ok {
				return
			}
			title, found := r.lookup(job.docID)
			if !found {
				select {
				case r.failed <- job.userData:
				case <-r.done:
				}
				continue
			}
			select {
			case r.results <- asyncread.ReadyItem{UserData: job.userData, Meta: title}:
			case <-r.done:
			}
		}
	}
}

func (r *titleReader) lookup(docID uint32) (string, bool) {
	dataDir, segmentName, ok := r.resolve(docID)
	if !ok {
		return "", false
	}

	r.cacheMu.Lock()
	metas, cached := r.cache[segmentName]
	r.cacheMu.Unlock()
	if !cached {
		loaded, err := segment.ReadDocMeta(filepath.Join(dataDir, segmentName))
		if err != nil {
			loaded = nil
		}
		metas = make(map[uint32]string, len(loaded))
		for _, m := range loaded {
			metas[m.DocID] = m.Title
		}
		r.cacheMu.Lock()
		r.cache[segmentName] = metas
		r.cacheMu.Unlock()
	}
	title, ok := metas[docID]
	return title, ok
}

// AddAsyncRead implements asyncread.DiskReader.
func (r *titleReader) AddAsyncRead(docID uint32, userData uint64) bool {
	select {
	case r.jobs <- titleJob{docID: docID, userData: userData}:
		r.inFlight++
		return true
	default:
		return false
	}
}

// PollAsyncReads implements asyncread.DiskReader.
func (r *titleReader) PollAsyncReads(timeout time.Duration, expiration time.Time) ([]asyncread.ReadyItem, []uint64, int) {
	deadline := time.Now().Add(timeout)
	if !expiration.IsZero() && expiration.Before(deadline) {
		deadline = expiration
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var ready []asyncread.ReadyItem
	var failed []uint64
	for {
		select {
		case item := <-r.results:
			ready = append(ready, item)
			r.inFlight--
			continue
		case ud := <-r.failed:
			failed = append(failed, ud)
			r.inFlight--
			continue
		default:
		}
		if len(ready) > 0 || len(failed) > 0 {
			return ready, failed, r.inFlight
		}
		select {
		case item := <-r.results:
			ready = append(ready, item)
			r.inFlight--
		case ud := <-r.failed:
			failed = append(failed, ud)
			r.inFlight--
		case <-timer.C:
			return ready, failed, r.inFlight
		}
	}
}

// Close implements asyncread.DiskReader.
func (r *titleReader) Close() {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
