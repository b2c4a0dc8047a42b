package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"learntrust-backend/internal/repository"
)

const heatmapBucketSeconds = 10

// dropOffThresholdPercent marks a sharp decline between adjacent
// buckets, usually where learners abandon or skip.
const dropOffThresholdPercent = 40.0

type Heatmap struct {
	ModuleID        uuid.UUID   `json:"module_id"`
	BucketSeconds   int         `json:"bucket_seconds"`
	Buckets         map[int]int `json:"buckets"`
	DropOffDetected bool        `json:"drop_off_detected"`
}

// HeatmapService aggregates heartbeat positions into fixed 10-second
// buckets for instructor-facing engagement views.
type HeatmapService struct {
	events *repository.EventRepo
}

func NewHeatmapService(events *repository.EventRepo) *HeatmapService {
	return &HeatmapService{events: events}
}

func (s *HeatmapService) ModuleHeatmap(ctx context.Context, moduleID uuid.UUID) (*Heatmap, error) {
	positions, err := s.events.HeartbeatPositions(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	buckets := map[int]int{}
	for _, p := range positions {
		bucket := (int(p) / heatmapBucketSeconds) * heatmapBucketSeconds
		buckets[bucket]++
	}

	return &Heatmap{
		ModuleID:        moduleID,
		BucketSeconds:   heatmapBucketSeconds,
		Buckets:         buckets,
		DropOffDetected: detectDropOff(buckets),
	}, nil
}

func detectDropOff(buckets map[int]int) bool {
	if len(buckets) < 2 {
		return false
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for i := 1; i < len(keys); i++ {
		prev := buckets[keys[i-1]]
		curr := buckets[keys[i]]
		if prev == 0 {
			continue
		}
		decrease := float64(prev-curr) / float64(prev) * 100
		if decrease > dropOffThresholdPercent {
			return true
		}
	}
	return false
}
