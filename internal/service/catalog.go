package service

import "context"

// CourseCatalog is the read-only collaborator providing each course's class
// duration in minutes. The catalog itself is maintained elsewhere.
type CourseCatalog interface {
	ClassDuration(ctx context.Context, courseID string) (int, error)
}

// StaticCatalog serves durations from a fixed table, falling back to a
// default for unknown or empty course IDs.
type StaticCatalog struct {
	DefaultMinutes int
	Durations      map[string]int
}

func (c StaticCatalog) ClassDuration(_ context.Context, courseID string) (int, error) {
	if d, ok := c.Durations[courseID]; ok {
		return d, nil
	}

	return c.DefaultMinutes, nil
}
