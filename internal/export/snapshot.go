package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is a self-contained, replayable copy of a project.
type Snapshot struct {
	Version     int                     `json:"version"`
	ExportedAt  time.Time               `json:"exportedAt"`
	Project     timeline.Project        `json:"project"`
	Composition composition.Composition `json:"composition"`
}

// NewSnapshot captures p together with its composition.
func NewSnapshot(p timeline.Project, now time.Time) Snapshot {
	p = p.Clone()
	return Snapshot{
		Version:     SnapshotVersion,
		ExportedAt:  now.UTC(),
		Project:     p,
		Composition: composition.Sequence(p),
	}
}

// Marshal encodes the snapshot as indented JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// ParseProject reads either a bare project or a snapshot document.
func ParseProject(data []byte) (timeline.Project, error) {
	var probe struct {
		Version int               `json:"version"`
		Project *timeline.Project `json:"project"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return timeline.Project{}, fmt.Errorf("failed to parse project: %w", err)
	}
	if probe.Project != nil {
		if probe.Version > SnapshotVersion {
			return timeline.Project{}, fmt.Errorf("snapshot version %d is newer than supported %d", probe.Version, SnapshotVersion)
		}
		p := *probe.Project
		p.Recompute()
		return p, nil
	}

	var p timeline.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return timeline.Project{}, fmt.Errorf("failed to parse project: %w", err)
	}
	p.Recompute()
	return p, nil
}
