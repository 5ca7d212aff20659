// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litmine/pkg/types"
)

// ExportYAML writes the project snapshot as YAML to w.
func (s *Store) ExportYAML(ctx context.Context, projectID string, w io.Writer) error {
	snap, err := s.Load(ctx, projectID)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ImportYAML reads a snapshot written by ExportYAML and saves it as a new
// project. Project ids and counters in the file are ignored.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (types.Project, error) {
	var snap types.ProjectSnapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return types.Project{}, fmt.Errorf("%w: parsing snapshot: %w", types.ErrInvalidRequest, err)
	}
	for i := range snap.Articles {
		if err := snap.Articles[i].Validate(); err != nil {
			return types.Project{}, fmt.Errorf("snapshot article %d: %w", i, err)
		}
	}

	p, err := s.CreateProject(ctx, types.NewProject{
		Name:         snap.Project.Name,
		Keyword:      snap.Project.Keyword,
		Years:        snap.Project.Years,
		Description:  snap.Project.Description,
		SearchMethod: snap.Project.SearchMethod,
	})
	if err != nil {
		return types.Project{}, err
	}
	if _, err := s.Upsert(ctx, p.ID, snap.Articles); err != nil {
		// Leave no half-imported project behind.
		_ = s.DeleteProject(ctx, p.ID)
		return types.Project{}, err
	}
	return s.GetProject(ctx, p.ID)
}
