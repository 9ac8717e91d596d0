package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/parley/internal/domain"
)

// Content layout below the catalog root.
const (
	TraitsFile     = "traits.yaml"
	CharactersFile = "characters.yaml"
	ScenesGlob     = "scenes/*.yaml"
	VariationsGlob = "variations/*.yaml"
)

var ErrInvalidContent = errors.New("invalid content")

// ContentError locates a problem in an authored file.
type ContentError struct {
	File string
	Path string
	Err  error
}

func (e *ContentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Path, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// Source is the read side of a FileSystem.
type Source interface {
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
}

// Catalog holds all authored content, one repository per kind.
type Catalog struct {
	Traits     *Memory[*domain.Trait]
	Characters *Memory[*domain.Character]
	Scenes     *Memory[*domain.SceneTemplate]
	Variations *Memory[*domain.VariationSet]
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Traits:     NewMemory(func(t *domain.Trait) string { return t.ID }),
		Characters: NewMemory(func(c *domain.Character) string { return c.ID }),
		Scenes:     NewMemory(func(s *domain.SceneTemplate) string { return s.ID }),
		Variations: NewMemory(func(v *domain.VariationSet) string { return v.ID }),
	}
}

// LoadCatalog reads every content file under src. The trait and character
// files are optional; scene and variation directories may be empty.
func LoadCatalog(ctx context.Context, src Source, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog_loader")

	l := &loader{src: src, validate: validator.New(), catalog: NewCatalog()}

	if err := l.loadTraits(ctx); err != nil {
		return nil, err
	}
	if err := l.loadCharacters(ctx); err != nil {
		return nil, err
	}
	if err := l.loadEach(ctx, VariationsGlob, l.loadVariations); err != nil {
		return nil, err
	}
	if err := l.loadEach(ctx, ScenesGlob, l.loadScene); err != nil {
		return nil, err
	}

	c := l.catalog
	logger.Info("Content catalog loaded",
		"traits", c.Traits.Len(),
		"characters", c.Characters.Len(),
		"scenes", c.Scenes.Len(),
		"variation_sets", c.Variations.Len())
	return c, nil
}

type loader struct {
	src      Source
	validate *validator.Validate
	catalog  *Catalog
}

func (l *loader) decode(ctx context.Context, file string, out any) error {
	data, err := l.src.Load(ctx, file)
	if err != nil {
		return &ContentError{File: file, Err: err}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &ContentError{File: file, Err: fmt.Errorf("%w: %v", ErrInvalidContent, err)}
	}
	if err := l.validate.Struct(out); err != nil {
		return &ContentError{File: file, Err: fmt.Errorf("%w: %v", ErrInvalidContent, err)}
	}
	return nil
}

func (l *loader) loadEach(ctx context.Context, pattern string, load func(context.Context, string) error) error {
	files, err := l.src.List(ctx, pattern)
	if err != nil {
		return fmt.Errorf("listing %s: %w", pattern, err)
	}
	sort.Strings(files)
	for _, f := range files {
		if err := load(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadTraits(ctx context.Context) error {
	if !l.src.Exists(ctx, TraitsFile) {
		return nil
	}
	var doc traitsDoc
	if err := l.decode(ctx, TraitsFile, &doc); err != nil {
		return err
	}
	for i, t := range doc.Traits {
		if l.catalog.Traits.Exists(t.ID) {
			return duplicate(TraitsFile, fmt.Sprintf("traits[%d]", i), t.ID)
		}
		l.catalog.Traits.Put(t)
	}
	return nil
}

func (l *loader) loadCharacters(ctx context.Context) error {
	if !l.src.Exists(ctx, CharactersFile) {
		return nil
	}
	var doc charactersDoc
	if err := l.decode(ctx, CharactersFile, &doc); err != nil {
		return err
	}
	for i, c := range doc.Characters {
		if l.catalog.Characters.Exists(c.ID) {
			return duplicate(CharactersFile, fmt.Sprintf("characters[%d]", i), c.ID)
		}
		l.catalog.Characters.Put(c.build())
	}
	return nil
}

func (l *loader) loadVariations(ctx context.Context, file string) error {
	var set domain.VariationSet
	if err := l.decode(ctx, file, &set); err != nil {
		return err
	}
	if l.catalog.Variations.Exists(set.ID) {
		return duplicate(file, "id", set.ID)
	}

	seen := make(map[string]bool, len(set.Fragments))
	for i, f := range set.Fragments {
		path := fmt.Sprintf("fragments[%d]", i)
		if f == nil {
			return &ContentError{File: file, Path: path, Err: fmt.Errorf("%w: empty fragment", ErrInvalidContent)}
		}
		if seen[f.ID] {
			return duplicate(file, path, f.ID)
		}
		seen[f.ID] = true

		for j := range f.RelationshipModifiers {
			op, err := parseOperator(string(f.RelationshipModifiers[j].Operator))
			if err != nil {
				return &ContentError{File: file, Path: fmt.Sprintf("%s.relationship_modifiers[%d]", path, j), Err: err}
			}
			f.RelationshipModifiers[j].Operator = op
		}
		for j := range f.ContextModifiers {
			if f.ContextModifiers[j].Op == "" {
				f.ContextModifiers[j].Op = domain.ContextSet
			}
		}
	}

	l.catalog.Variations.Put(&set)
	return nil
}

func (l *loader) loadScene(ctx context.Context, file string) error {
	var doc sceneDoc
	if err := l.decode(ctx, file, &doc); err != nil {
		return err
	}
	if l.catalog.Scenes.Exists(doc.ID) {
		return duplicate(file, "id", doc.ID)
	}

	scene, err := doc.build()
	if err != nil {
		var ce *ContentError
		if errors.As(err, &ce) {
			ce.File = file
			return ce
		}
		return &ContentError{File: file, Err: err}
	}

	l.catalog.Scenes.Put(scene)
	return nil
}

func duplicate(file, path, id string) error {
	return &ContentError{File: file, Path: path, Err: fmt.Errorf("%w: duplicate id %q", ErrInvalidContent, id)}
}
