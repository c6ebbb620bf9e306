package riotbackend

import (
	"log"
	"sync"

	"github.com/go-ego/riot"
	"github.com/go-ego/riot/types"
)

const (
	opIndex = iota
	opDelete
	opFlush
)

type engineOp struct {
	op     int
	engine *riot.Engine
	docID  string
	doc    *types.DocData
	done   chan struct{}
}

var (
	workerLock sync.Mutex
	opChan     chan *engineOp
	stopChan   chan struct{}
	workerNum  int
	started    bool
)

// StartWorkers launches the indexing worker pool. It must be called once
// before a riot backend handles writes.
func StartWorkers(n int) {
	workerLock.Lock()
	defer workerLock.Unlock()
	if started {
		return
	}
	if n <= 0 {
		n = 1
	}

	opChan = make(chan *engineOp, n)
	stopChan = make(chan struct{})
	workerNum = n
	started = true
	for i := 0; i < n; i++ {
		go opThread()
	}
}

// StopWorkers drains the pool and closes every engine. Pending operations
// are applied before the workers exit.
func StopWorkers() {
	workerLock.Lock()
	if !started {
		workerLock.Unlock()
		return
	}
	started = false
	close(opChan)
	n := workerNum
	workerLock.Unlock()

	for i := 0; i < n; i++ {
		<-stopChan
	}

	engines := map[string]*riot.Engine{}
	backendsLock.Lock()
	for key, x := range liveEngines {
		engines[key] = x
		delete(liveEngines, key)
	}
	backendsLock.Unlock()

	for key, engine := range engines {
		log.Printf("[info] stopping riot engine %s ...\n", key)
		engine.Close()
	}
}

func running() bool {
	workerLock.Lock()
	defer workerLock.Unlock()
	return started
}

func enqueue(op *engineOp) bool {
	workerLock.Lock()
	if !started {
		workerLock.Unlock()
		return false
	}
	ch := opChan
	workerLock.Unlock()

	ch <- op
	return true
}

// With workerNum > 1 a flush may run while an index op is still in flight
// on another worker; riot's Flush drains the engine's own pipeline, so the
// flush covers every doc already handed to IndexDoc, but not an op a
// concurrent worker has yet to apply. Callers needing a hard barrier wait
// on the done channel of each op before enqueueing the flush.
func opThread() {
	for op := range opChan {
		switch op.op {
		case opIndex:
			op.engine.IndexDoc(op.docID, *op.doc, true)
		case opDelete:
			op.engine.RemoveDoc(op.docID, true)
		case opFlush:
			op.engine.Flush()
		}
		if op.done != nil {
			close(op.done)
		}
	}
	stopChan <- struct{}{}
}

// engines opened by any riot provider, closed on StopWorkers
var (
	backendsLock sync.Mutex
	liveEngines  = map[string]*riot.Engine{}
)

func trackEngine(key string, engine *riot.Engine) {
	backendsLock.Lock()
	liveEngines[key] = engine
	backendsLock.Unlock()
}

func untrackEngine(key string) {
	backendsLock.Lock()
	delete(liveEngines, key)
	backendsLock.Unlock()
}
