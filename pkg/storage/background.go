package storage

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Stats returns record, index and memory statistics for health reporting.
func (ms *MemoryStore) Stats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return map[string]interface{}{
		"records":        len(ms.records),
		"indexes":        ms.indexEngine.GetIndexes(),
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"num_goroutines": runtime.NumGoroutine(),
	}
}

// StartBackgroundWorkers starts the periodic snapshot worker when enabled.
func (ms *MemoryStore) StartBackgroundWorkers() {
	if !ms.backgroundSave || ms.dataFile == "" {
		return
	}

	ms.backgroundWg.Add(1)
	go func() {
		defer ms.backgroundWg.Done()
		ticker := time.NewTicker(ms.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := ms.Save(); err != nil {
					ms.logger.Error("background save failed", zap.Error(err))
				}
			case <-ms.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops background workers
func (ms *MemoryStore) StopBackgroundWorkers() {
	select {
	case <-ms.stopChan:
		// Channel already closed, do nothing
	default:
		close(ms.stopChan)
	}
	ms.backgroundWg.Wait()
}

// Close stops background workers and writes a final snapshot.
func (ms *MemoryStore) Close() error {
	ms.StopBackgroundWorkers()
	return ms.Save()
}
