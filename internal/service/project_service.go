package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/export"
	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/timeline"
)

var ErrProjectNotFound = errors.New("project not found")

const projectTTL = 30 * 24 * time.Hour

// ProjectService owns the live timeline stores. Every effective commit on a
// store is written through to Redis, and stores are reloaded from Redis on
// first access.
type ProjectService struct {
	redis      *redis.Client
	logger     hclog.Logger
	defaultFPS int

	mu     sync.Mutex
	stores map[string]*timeline.Store
}

func NewProjectService(redisClient *redis.Client, defaultFPS int, logger hclog.Logger) *ProjectService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ProjectService{
		redis:      redisClient,
		logger:     logger,
		defaultFPS: defaultFPS,
		stores:     make(map[string]*timeline.Store),
	}
}

// Create starts a new empty project
func (s *ProjectService) Create(ctx context.Context, req *model.CreateProjectRequest) (timeline.Project, error) {
	fps := req.FPS
	if fps == 0 {
		fps = s.defaultFPS
	}
	p := timeline.NewProject(uuid.New().String(), req.Name, fps, req.Width, req.Height)
	p.UpdatedAt = time.Now().UTC()
	if err := s.register(ctx, p); err != nil {
		return timeline.Project{}, err
	}
	return p, nil
}

// Import registers a project read from a snapshot or bare project document
// under a fresh id.
func (s *ProjectService) Import(ctx context.Context, data []byte) (timeline.Project, error) {
	p, err := export.ParseProject(data)
	if err != nil {
		return timeline.Project{}, &timeline.ValidationError{Code: timeline.CodeInvalidValue, Message: err.Error()}
	}
	p.ID = uuid.New().String()
	p.UpdatedAt = time.Now().UTC()
	for i := range p.Media {
		if err := timeline.ValidateMedia(&p.Media[i]); err != nil {
			return timeline.Project{}, err
		}
	}
	for i := range p.Texts {
		if err := timeline.ValidateText(&p.Texts[i]); err != nil {
			return timeline.Project{}, err
		}
	}
	if err := s.register(ctx, p); err != nil {
		return timeline.Project{}, err
	}
	return p, nil
}

func (s *ProjectService) register(ctx context.Context, p timeline.Project) error {
	if err := s.save(ctx, p); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	s.mu.Lock()
	s.stores[p.ID] = s.attach(timeline.NewStore(p))
	s.mu.Unlock()
	return nil
}

// Store returns the live store for a project, loading it if needed
func (s *ProjectService) Store(ctx context.Context, projectID string) (*timeline.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[projectID]; ok {
		return st, nil
	}

	p, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	st := s.attach(timeline.NewStore(p))
	s.stores[projectID] = st
	return st, nil
}

func (s *ProjectService) attach(st *timeline.Store) *timeline.Store {
	st.Subscribe(func(p timeline.Project) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.save(ctx, p); err != nil {
			s.logger.Error("failed to persist project", "project_id", p.ID, "error", err)
		}
	})
	return st
}

// Get returns a snapshot of the project
func (s *ProjectService) Get(ctx context.Context, projectID string) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.Snapshot(), nil
}

// Composition sequences the current project state
func (s *ProjectService) Composition(ctx context.Context, projectID string) (composition.Composition, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return composition.Composition{}, err
	}
	return composition.Sequence(p), nil
}

// Update applies project-level settings
func (s *ProjectService) Update(ctx context.Context, projectID string, req *model.UpdateProjectRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}

	p := st.Snapshot()
	if req.Name != nil {
		if p, err = st.SetName(*req.Name); err != nil {
			return p, err
		}
	}
	if req.Zoom != nil {
		if p, err = st.SetZoom(*req.Zoom); err != nil {
			return p, err
		}
	}
	if req.Muted != nil {
		if p, err = st.SetMuted(*req.Muted); err != nil {
			return p, err
		}
	}
	if req.CurrentTime != nil {
		if p, err = st.SetCurrentTime(*req.CurrentTime); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (s *ProjectService) AddMedia(ctx context.Context, projectID string, req *model.AddMediaRequest) (*model.ElementResponse, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m, err := st.AddMedia(req.ToElement())
	if err != nil {
		return nil, err
	}
	return &model.ElementResponse{Element: m, Project: st.Snapshot()}, nil
}

func (s *ProjectService) AddText(ctx context.Context, projectID string, req *model.AddTextRequest) (*model.ElementResponse, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return nil, err
	}
	t, err := st.AddText(req.ToElement())
	if err != nil {
		return nil, err
	}
	return &model.ElementResponse{Element: t, Project: st.Snapshot()}, nil
}

func (s *ProjectService) UpdateMedia(ctx context.Context, projectID, elementID string, req *model.UpdateMediaRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.UpdateMedia(elementID, req.Apply)
}

func (s *ProjectService) UpdateText(ctx context.Context, projectID, elementID string, req *model.UpdateTextRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.UpdateText(elementID, req.Apply)
}

// DeleteElement removes an element by id. Unknown ids leave the project
// unchanged.
func (s *ProjectService) DeleteElement(ctx context.Context, projectID, elementID string) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.ApplyDelete(elementID)
}

// Split cuts the selected element at req.Time, or at the current time
func (s *ProjectService) Split(ctx context.Context, projectID string, req *model.SplitRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	t := st.CurrentTime()
	if req.Time != nil {
		t = *req.Time
	}
	return st.ApplySplit(req.Selection, t)
}

func (s *ProjectService) Duplicate(ctx context.Context, projectID string, req *model.DuplicateRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.ApplyDuplicate(req.Selection)
}

func (s *ProjectService) Drag(ctx context.Context, projectID string, req *model.DragRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.ApplyDrag(req.Selection, req.Left)
}

func (s *ProjectService) Resize(ctx context.Context, projectID string, req *model.ResizeRequest) (timeline.Project, error) {
	st, err := s.Store(ctx, projectID)
	if err != nil {
		return timeline.Project{}, err
	}
	return st.ApplyResize(req.Selection, req.Width)
}

// Helper methods

func projectKey(projectID string) string {
	return fmt.Sprintf("project:%s", projectID)
}

func (s *ProjectService) save(ctx context.Context, p timeline.Project) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, projectKey(p.ID), data, projectTTL).Err()
}

func (s *ProjectService) load(ctx context.Context, projectID string) (timeline.Project, error) {
	if s.redis == nil {
		return timeline.Project{}, ErrProjectNotFound
	}
	data, err := s.redis.Get(ctx, projectKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return timeline.Project{}, ErrProjectNotFound
		}
		return timeline.Project{}, err
	}

	var p timeline.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return timeline.Project{}, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	p.Recompute()
	return p, nil
}
