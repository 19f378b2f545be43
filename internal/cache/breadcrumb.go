package cache

import (
	"context"

	"github.com/R3E-Network/sfmc-inv2/internal/breadcrumb"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

// Breadcrumb returns the memoized breadcrumb builder for a folder cache
// kind, constructing it on first use from the kind's populated folder map.
// The underlying folder map is only ever built once per kind, same as
// every other cache entry.
func (m *Manager) Breadcrumb(ctx context.Context, kind Kind) (*breadcrumb.Builder, error) {
	m.bcMu.Lock()
	if b, ok := m.bcBuilders[kind]; ok {
		m.bcMu.Unlock()
		return b, nil
	}
	m.bcMu.Unlock()

	data, err := m.GetAll(ctx, kind)
	if err != nil {
		return nil, err
	}

	folders := make(model.FolderMap, len(data))
	for id, v := range data {
		if f, ok := v.(model.Folder); ok {
			folders[id] = f
		}
	}

	m.bcMu.Lock()
	defer m.bcMu.Unlock()
	if b, ok := m.bcBuilders[kind]; ok {
		return b, nil
	}
	b := breadcrumb.New(folders, 0)
	m.bcBuilders[kind] = b
	return b, nil
}

// GetBreadcrumb resolves a single folder id's breadcrumb path for kind.
func (m *Manager) GetBreadcrumb(ctx context.Context, kind Kind, folderID string) (breadcrumb.Result, error) {
	b, err := m.Breadcrumb(ctx, kind)
	if err != nil {
		return breadcrumb.Result{}, err
	}
	return b.Resolve(folderID), nil
}
