package goals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/goalpath/internal/cache"
	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/tutor"
)

var (
	// ErrUnavailable is returned when no generation provider is configured.
	ErrUnavailable = errors.New("roadmap generation is not configured")
	// ErrInvalidRoadmap is returned when the model output is not a usable roadmap.
	ErrInvalidRoadmap = errors.New("invalid roadmap structure received from model")
)

// Generator returns raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// draft is the document the model returns and the cache stores.
type draft struct {
	Title    string      `json:"title"`
	Duration string      `json:"duration"`
	Roadmap  []draftWeek `json:"roadmap"`
}

type draftWeek struct {
	Week        int    `json:"week"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Planner turns a goal description into a domain.Goal with a fresh roadmap.
type Planner struct {
	gen      Generator
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// PlannerConfig configures a Planner. Cache may be nil.
type PlannerConfig struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewPlanner creates a planner. A nil gen makes Generate fail with ErrUnavailable.
func NewPlanner(gen Generator, cfg PlannerConfig) *Planner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = tutor.DefaultProviderTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Planner{
		gen:      gen,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Available reports whether a generator is configured.
func (p *Planner) Available() bool {
	return p.gen != nil
}

// CacheKey identifies a (goal, duration) pair regardless of case and spacing.
func CacheKey(goal, duration string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(goal), " ")) + "|" +
		strings.ToLower(strings.Join(strings.Fields(duration), " "))
	sum := sha256.Sum256([]byte(norm))
	return "roadmap:" + hex.EncodeToString(sum[:])
}

// Generate builds a new goal for userID. Weeks get fresh IDs and start
// incomplete, so progress is 0 even when the roadmap came from cache.
func (p *Planner) Generate(ctx context.Context, userID, goal, duration string) (*domain.Goal, error) {
	goal = strings.TrimSpace(goal)
	duration = strings.TrimSpace(duration)
	if goal == "" {
		return nil, errors.New("goal is required")
	}

	d, err := p.draft(ctx, goal, duration)
	if err != nil {
		return nil, err
	}

	now := p.now()
	g := &domain.Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     d.Title,
		Duration:  d.Duration,
		Roadmap:   make([]domain.Week, 0, len(d.Roadmap)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if g.Duration == "" {
		g.Duration = duration
	}
	for i, w := range d.Roadmap {
		num := w.Week
		if num <= 0 {
			num = i + 1
		}
		g.Roadmap = append(g.Roadmap, domain.Week{
			ID:          uuid.NewString(),
			Week:        num,
			Title:       w.Title,
			Description: w.Description,
		})
	}
	g.RecomputeProgress()
	return g, nil
}

func (p *Planner) draft(ctx context.Context, goal, duration string) (draft, error) {
	key := CacheKey(goal, duration)
	if p.cache != nil {
		data, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.Warn("Roadmap cache read failed", "error", err)
		}
		if ok {
			if d, err := parseDraft(string(data)); err == nil {
				p.logger.Debug("Roadmap cache hit", "key", key)
				return d, nil
			}
		}
	}

	if !p.Available() {
		return draft{}, ErrUnavailable
	}

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.gen.Generate(genCtx, RoadmapPrompt(goal, duration))
	if err != nil {
		return draft{}, fmt.Errorf("generate roadmap: %w", err)
	}
	d, err := parseDraft(raw)
	if err != nil {
		return draft{}, err
	}

	if p.cache != nil {
		data, err := json.Marshal(d)
		if err == nil {
			err = p.cache.Set(ctx, key, data, p.cacheTTL)
		}
		if err != nil {
			p.logger.Warn("Roadmap cache write failed", "error", err)
		}
	}
	return d, nil
}

func parseDraft(raw string) (draft, error) {
	var d draft
	if err := json.Unmarshal([]byte(tutor.StripFences(raw)), &d); err != nil {
		return draft{}, fmt.Errorf("%w: %v", ErrInvalidRoadmap, err)
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" || len(d.Roadmap) == 0 {
		return draft{}, ErrInvalidRoadmap
	}
	for _, w := range d.Roadmap {
		if strings.TrimSpace(w.Title) == "" {
			return draft{}, fmt.Errorf("%w: week without title", ErrInvalidRoadmap)
		}
	}
	return d, nil
}
