// Package spaces reads bookable spaces from the floor/space subsystem.
package spaces

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

// Directory resolves spaces. Lookup returns model.ErrSpaceNotFound for
// unknown ids.
type Directory interface {
	Lookup(ctx context.Context, spaceID string) (model.Space, error)
	Names(ctx context.Context, spaceIDs []string) (map[string]model.Space, error)
	List(ctx context.Context) ([]model.Space, error)
}

// StaticDirectory is an in-memory Directory.
type StaticDirectory struct {
	mu     sync.RWMutex
	spaces map[string]model.Space
}

func NewStaticDirectory(spaces ...model.Space) *StaticDirectory {
	d := &StaticDirectory{spaces: make(map[string]model.Space, len(spaces))}
	for _, s := range spaces {
		d.spaces[s.ID] = s
	}
	return d
}

func (d *StaticDirectory) Put(s model.Space) {
	d.mu.Lock()
	d.spaces[s.ID] = s
	d.mu.Unlock()
}

func (d *StaticDirectory) SetActive(spaceID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.spaces[spaceID]; ok {
		s.Active = active
		d.spaces[spaceID] = s
	}
}

func (d *StaticDirectory) Lookup(_ context.Context, spaceID string) (model.Space, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.spaces[spaceID]
	if !ok {
		return model.Space{}, fmt.Errorf("%w: %s", model.ErrSpaceNotFound, spaceID)
	}
	return s, nil
}

func (d *StaticDirectory) Names(_ context.Context, spaceIDs []string) (map[string]model.Space, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]model.Space, len(spaceIDs))
	for _, id := range spaceIDs {
		if s, ok := d.spaces[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (d *StaticDirectory) List(context.Context) ([]model.Space, error) {
	d.mu.RLock()
	out := make([]model.Space, 0, len(d.spaces))
	for _, s := range d.spaces {
		out = append(out, s)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ParseSeed reads "R1,R2:inactive,R3" into spaces named after their ids.
func ParseSeed(raw string) ([]model.Space, error) {
	var out []model.Space
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, flag, _ := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("seed %q: empty space id", part)
		}
		s := model.Space{ID: id, Name: id, Type: "room", Active: true}
		switch strings.TrimSpace(flag) {
		case "", "active":
		case "inactive":
			s.Active = false
		default:
			return nil, fmt.Errorf("seed %q: unknown flag %q", part, flag)
		}
		out = append(out, s)
	}
	return out, nil
}
