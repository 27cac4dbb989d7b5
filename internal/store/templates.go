package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

func templateKey(templateType types.TemplateType, name string) string {
	return fmt.Sprintf("%s%s:%s", templatePrefix, templateType, name)
}

// UpsertTemplate creates or replaces a template, keyed by (type, name).
// Import runs use this to refresh existing templates in place.
func (s *Store) UpsertTemplate(ctx context.Context, tmpl *types.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !tmpl.Type.Valid() {
		return fmt.Errorf("invalid template type %q", tmpl.Type)
	}
	if tmpl.Name == "" {
		return errors.New("template name required")
	}

	now := time.Now()
	cp := tmpl.Clone()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.MatchScore = 0 // transient, never persisted

	content, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		// Preserve identity and creation time across reimports.
		if existing, getErr := tx.Get(templateKey(cp.Type, cp.Name)); getErr == nil {
			var prev types.Template
			if json.Unmarshal([]byte(existing), &prev) == nil {
				cp.ID = prev.ID
				cp.CreatedAt = prev.CreatedAt
				content, _ = json.Marshal(cp)
			}
		}
		_, _, setErr := tx.Set(templateKey(cp.Type, cp.Name), string(content), nil)
		return setErr
	})
	if err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	tmpl.ID = cp.ID
	s.logger.Debug("Template upserted",
		zap.String("type", string(cp.Type)),
		zap.String("name", cp.Name),
	)
	return nil
}

// GetTemplate returns one template by type and name.
func (s *Store) GetTemplate(ctx context.Context, templateType types.TemplateType, name string) (*types.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tmpl types.Template
	err := s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(templateKey(templateType, name))
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return json.Unmarshal([]byte(value), &tmpl)
	})
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// DeleteTemplate removes a template. Missing templates return ErrNotFound.
func (s *Store) DeleteTemplate(ctx context.Context, templateType types.TemplateType, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(templateKey(templateType, name))
		if errors.Is(err, buntdb.ErrNotFound) {
			return ErrNotFound
		}
		return err
	})
}

// Find returns all templates of a type matching the predicate, in the
// repository's natural (key) order.
func (s *Store) Find(ctx context.Context, templateType types.TemplateType, match func(*types.Template) bool) ([]*types.Template, error) {
	all, err := s.All(ctx, templateType)
	if err != nil {
		return nil, err
	}
	var out []*types.Template
	for _, t := range all {
		if match == nil || match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// FindOne returns the first matching template, or nil when none match.
func (s *Store) FindOne(ctx context.Context, templateType types.TemplateType, match func(*types.Template) bool) (*types.Template, error) {
	found, err := s.Find(ctx, templateType, match)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// All returns every template of a type in natural key order.
func (s *Store) All(ctx context.Context, templateType types.TemplateType) ([]*types.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s%s:", templatePrefix, templateType)
	var out []*types.Template
	var decodeErr error

	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			var tmpl types.Template
			if err := json.Unmarshal([]byte(value), &tmpl); err != nil {
				decodeErr = fmt.Errorf("corrupt template document %s: %w", key, err)
				return false
			}
			out = append(out, &tmpl)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}
