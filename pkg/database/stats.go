package database

import (
	"sync"
	"time"
)

// TypeCount represents a count by type
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// CachedStats holds the cached repository statistics
type CachedStats struct {
	ComputedAt string      `json:"computedAt"`
	Objects    int         `json:"objects"`
	Models     []TypeCount `json:"models"`
	Jobs       []TypeCount `json:"jobs"`
}

// statsCache holds the singleton instance
type statsCache struct {
	mu    sync.RWMutex
	stats *CachedStats
}

var cache = &statsCache{}

// GetCachedStats returns the cached stats if available, nil otherwise
func GetCachedStats() *CachedStats {
	if !cache.mu.TryRLock() {
		return nil
	}
	defer cache.mu.RUnlock()

	return cache.stats
}

// ComputeAndCacheStats computes the stats from the database and stores them in cache
func ComputeAndCacheStats(force bool) *CachedStats {
	if force {
		cache.mu.Lock()
	} else {
		if !cache.mu.TryLock() {
			// Another computation is in progress, return nil to indicate stats are not available
			return nil
		}
	}
	defer cache.mu.Unlock()

	stats := &CachedStats{
		ComputedAt: time.Now().UTC().Format(time.RFC3339),
	}

	// Count objects
	var objectCount int64
	DB.Model(&DigitalObject{}).Count(&objectCount)
	stats.Objects = int(objectCount)

	// Count objects by model
	DB.Model(&DigitalObject{}).
		Select("object_model as type, COUNT(*) as count").
		Group("object_model").
		Scan(&stats.Models)

	// Count export jobs by state
	DB.Model(&ExportJob{}).
		Select("state as type, COUNT(*) as count").
		Group("state").
		Scan(&stats.Jobs)

	cache.stats = stats
	return cache.stats
}

// InvalidateStatsCache marks the cache as invalid so it will be recomputed on next access
func InvalidateStatsCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.stats = nil
}

// HasCachedStats returns whether stats are currently cached
func HasCachedStats() bool {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cache.stats != nil
}
