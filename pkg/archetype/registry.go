package archetype

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	apperrors "companion/pkg/errors"

	"github.com/BurntSushi/toml"
)

//go:embed data/*.toml
var embeddedArchetypes embed.FS

// Archetype is a reusable personality template. Read-only.
type Archetype struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Aliases     []string `toml:"aliases"`
	Style       string   `toml:"style"`
	Expressions []string `toml:"expressions"`
	Fantasies   []string `toml:"fantasies"`
	Games       []string `toml:"games"`
	Anecdotes   []string `toml:"anecdotes"`
}

// Registry is the immutable archetype catalogue, loaded once at start-up and
// passed to whoever needs it.
type Registry struct {
	byID    map[string]Archetype
	aliases map[string]string
}

// LoadDefault loads the embedded catalogue.
func LoadDefault() (*Registry, error) {
	return Load(embeddedArchetypes, "data")
}

// LoadWithOverrides loads the embedded catalogue, then lets TOML files in dir
// replace (or add to) it. A missing dir is not an error.
func LoadWithOverrides(dir string) (*Registry, error) {
	base, err := decodeDir(embeddedArchetypes, "data")
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			overrides, err := decodeDir(os.DirFS(dir), ".")
			if err != nil {
				return nil, err
			}
			merged := make(map[string]Archetype, len(base))
			for _, a := range base {
				merged[a.ID] = a
			}
			for _, a := range overrides {
				merged[a.ID] = a
			}
			base = make([]Archetype, 0, len(merged))
			for _, a := range merged {
				base = append(base, a)
			}
		}
	}
	return newRegistry(base)
}

// Load decodes every *.toml file under dir in fsys.
func Load(fsys fs.FS, dir string) (*Registry, error) {
	list, err := decodeDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	return newRegistry(list)
}

func decodeDir(fsys fs.FS, dir string) ([]Archetype, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archetype dir: %w", err)
	}

	var out []Archetype
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		var a Archetype
		if _, err := toml.Decode(string(data), &a); err != nil {
			return nil, &apperrors.ConfigurationError{Kind: "archetype", ID: entry.Name(), Err: err}
		}
		a.ID = normalize(a.ID)
		if a.ID != "" && seen[a.ID] != "" {
			return nil, &apperrors.ConfigurationError{Kind: "archetype", ID: a.ID, Err: fmt.Errorf("duplicate id in %s and %s", seen[a.ID], entry.Name())}
		}
		seen[a.ID] = entry.Name()
		out = append(out, a)
	}
	return out, nil
}

// newRegistry indexes list by id. Aliases are claimed in id order, so when two
// archetypes share an alias the one with the smaller id keeps it.
func newRegistry(list []Archetype) (*Registry, error) {
	list = append([]Archetype(nil), list...)
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	r := &Registry{
		byID:    make(map[string]Archetype, len(list)),
		aliases: make(map[string]string),
	}
	for _, a := range list {
		if a.ID == "" {
			return nil, &apperrors.ConfigurationError{Kind: "archetype", Err: fmt.Errorf("missing id")}
		}
		if strings.TrimSpace(a.Style) == "" {
			return nil, &apperrors.ConfigurationError{Kind: "archetype", ID: a.ID, Err: fmt.Errorf("missing style")}
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, &apperrors.ConfigurationError{Kind: "archetype", ID: a.ID, Err: fmt.Errorf("duplicate id")}
		}
		r.byID[a.ID] = a
	}
	for _, a := range list {
		for _, alias := range a.Aliases {
			key := normalize(alias)
			if _, clash := r.byID[key]; clash || key == "" {
				continue
			}
			if _, taken := r.aliases[key]; taken {
				continue
			}
			r.aliases[key] = a.ID
		}
	}
	return r, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup returns the archetype for id (or one of its aliases). An unknown id
// means a persona references data that does not exist.
func (r *Registry) Lookup(id string) (Archetype, error) {
	key := normalize(id)
	if a, ok := r.byID[key]; ok {
		return a, nil
	}
	if target, ok := r.aliases[key]; ok {
		return r.byID[target], nil
	}
	return Archetype{}, &apperrors.ConfigurationError{Kind: "archetype", ID: id, Err: apperrors.ErrNotFound}
}

// IDs returns the sorted archetype ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	return len(r.byID)
}
