// Package instance loads tenant instances from a root directory: per-tenant
// configuration, the layered system prompt, greeting material and knowledge
// files.
package instance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
)

const (
	configFile  = "config.json"
	builderFile = "builder.json"

	greetingFile    = "initial_greeting.txt"
	initMessageFile = "initialization_message.txt"
	descriptionFile = "instance_description.txt"
)

// builderRecord is the on-disk prompt builder (builder.json). Each fragment
// is either inline text or a "file:<path>" reference.
type builderRecord struct {
	Name                  string `json:"name"`
	InitialInstructions   string `json:"initial_instructions"`
	BaseConfig            string `json:"base_config"`
	FunctionalConfig      string `json:"functional_config"`
	CitationConfig        string `json:"citation_config,omitempty"`
	InitialGreeting       string `json:"initial_greeting,omitempty"`
	InitializationMessage string `json:"initialization_message,omitempty"`
}

// Registry scans and loads tenant instances under a single root directory.
type Registry struct {
	root   string
	logger *slog.Logger
}

func NewRegistry(root string, logger *slog.Logger) *Registry {
	return &Registry{root: root, logger: logger}
}

// List returns the summaries of every directory under the root that carries
// both a config record and a builder record, sorted by id.
func (r *Registry) List() ([]models.TenantSummary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("read instances root %s: %w", r.root, err)
	}

	var out []models.TenantSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if !r.Validate(id) {
			continue
		}

		dir := filepath.Join(r.root, id)
		summary := models.TenantSummary{ID: id, Name: id}

		var builder builderRecord
		if data, err := os.ReadFile(filepath.Join(dir, builderFile)); err == nil {
			if json.Unmarshal(data, &builder) == nil && builder.Name != "" {
				summary.Name = builder.Name
			}
		}
		summary.Description = readOptionalFile(filepath.Join(dir, descriptionFile))
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Validate reports whether the id names a loadable instance directory.
func (r *Registry) Validate(id string) bool {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return false
	}
	dir := filepath.Join(r.root, id)
	for _, required := range []string{configFile, builderFile} {
		if _, err := os.Stat(filepath.Join(dir, required)); err != nil {
			return false
		}
	}
	return true
}

// Load reads one tenant: config record, assembled system prompt with its
// hash, greeting material and knowledge files.
func (r *Registry) Load(id string) (*models.Tenant, error) {
	if !r.Validate(id) {
		return nil, domain.ErrTenantNotFound(id)
	}
	dir := filepath.Join(r.root, id)

	cfgData, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, domain.ErrTenantInvalid(id, fmt.Errorf("read config record: %w", err))
	}
	var cfg models.TenantConfig
	if err := json.Unmarshal(cfgData, &cfg); err != nil {
		return nil, domain.ErrTenantInvalid(id, fmt.Errorf("parse config record: %w", err))
	}

	builderData, err := os.ReadFile(filepath.Join(dir, builderFile))
	if err != nil {
		return nil, domain.ErrTenantInvalid(id, fmt.Errorf("read builder record: %w", err))
	}
	var builder builderRecord
	if err := json.Unmarshal(builderData, &builder); err != nil {
		return nil, domain.ErrTenantInvalid(id, fmt.Errorf("parse builder record: %w", err))
	}

	prompt, err := r.assemblePrompt(id, dir, &builder)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256([]byte(prompt))

	normalized := cfg.Normalized()
	knowledge, err := r.loadKnowledgeFiles(dir, normalized)
	if err != nil {
		return nil, domain.ErrTenantInvalid(id, err)
	}

	name := builder.Name
	if name == "" {
		name = id
	}

	greeting := readOptionalFile(filepath.Join(dir, greetingFile))
	if greeting == "" {
		greeting = builder.InitialGreeting
	}
	initMessage := readOptionalFile(filepath.Join(dir, initMessageFile))
	if initMessage == "" {
		initMessage = builder.InitializationMessage
	}

	return &models.Tenant{
		ID:                    id,
		Name:                  name,
		Description:           readOptionalFile(filepath.Join(dir, descriptionFile)),
		Greeting:              greeting,
		InitializationMessage: initMessage,
		SystemPrompt:          prompt,
		SystemPromptHash:      hex.EncodeToString(hash[:]),
		Config:                normalized,
		KnowledgeFiles:        knowledge,
		Dir:                   dir,
	}, nil
}

// assemblePrompt concatenates the builder's layered fragments in fixed order
// under section headers. The citation section is optional; the rest are
// required.
func (r *Registry) assemblePrompt(id, dir string, builder *builderRecord) (string, error) {
	sections := []struct {
		header   string
		fragment string
		required bool
	}{
		{"initial_instructions", builder.InitialInstructions, true},
		{"base_config", builder.BaseConfig, true},
		{"functional_config", builder.FunctionalConfig, true},
		{"citation_config", builder.CitationConfig, false},
	}

	var parts []string
	for _, s := range sections {
		if s.fragment == "" {
			if s.required {
				return "", domain.ErrTenantInvalid(id, fmt.Errorf("builder fragment %q is empty", s.header))
			}
			continue
		}
		text, err := r.resolveFragment(dir, s.fragment)
		if err != nil {
			var gerr *domain.GatewayError
			if errors.As(err, &gerr) {
				return "", err
			}
			return "", domain.ErrTenantInvalid(id, fmt.Errorf("fragment %q: %w", s.header, err))
		}
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", s.header, strings.TrimSpace(text)))
	}
	return strings.Join(parts, "\n\n"), nil
}

// resolveFragment returns the fragment text. A "file:" reference is read from
// disk under the path rule: a path containing the registry root segment is
// taken from the process working directory, a "./" path from the tenant
// directory, anything else is rejected.
func (r *Registry) resolveFragment(dir, fragment string) (string, error) {
	ref, ok := strings.CutPrefix(fragment, "file:")
	if !ok {
		return fragment, nil
	}
	ref = strings.TrimSpace(ref)

	var path string
	rootSegment := filepath.Base(filepath.Clean(r.root))
	switch {
	case containsSegment(ref, rootSegment):
		path = ref
	case strings.HasPrefix(ref, "./"):
		path = filepath.Join(dir, ref)
	default:
		return "", domain.ErrConfiguration(fmt.Sprintf("fragment path %q is neither root-anchored nor tenant-relative", ref), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read fragment file %s: %w", path, err)
	}
	return string(data), nil
}

// loadKnowledgeFiles reads the tenant's text knowledge files honoring the
// per-file, total and count caps. Missing roots are fine.
func (r *Registry) loadKnowledgeFiles(dir string, cfg *models.TenantConfig) ([]models.KnowledgeFile, error) {
	roots := cfg.KnowledgeRoots
	if len(roots) == 0 {
		roots = []string{"files"}
	}

	var names []string
	paths := make(map[string]string)
	for _, root := range roots {
		base := filepath.Join(dir, root)
		entries, err := os.ReadDir(base)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read knowledge root %s: %w", base, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			if _, dup := paths[entry.Name()]; dup {
				continue
			}
			paths[entry.Name()] = filepath.Join(base, entry.Name())
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if len(names) > cfg.InstanceFilesLimit {
		r.logger.Warn("knowledge file count exceeds limit, truncating",
			"dir", dir, "count", len(names), "limit", cfg.InstanceFilesLimit)
		names = names[:cfg.InstanceFilesLimit]
	}

	var out []models.KnowledgeFile
	total := 0
	for _, name := range names {
		data, err := os.ReadFile(paths[name])
		if err != nil {
			return nil, fmt.Errorf("read knowledge file %s: %w", paths[name], err)
		}
		content := string(data)
		if runes := []rune(content); len(runes) > cfg.MaxFileChars {
			content = string(runes[:cfg.MaxFileChars])
		}
		if remaining := cfg.MaxTotalFileChars - total; remaining <= 0 {
			break
		} else if runes := []rune(content); len(runes) > remaining {
			content = string(runes[:remaining])
		}
		total += len([]rune(content))
		out = append(out, models.KnowledgeFile{Name: name, Content: content})
	}
	return out, nil
}

func readOptionalFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// containsSegment reports whether path contains segment as a whole path
// element.
func containsSegment(path, segment string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == segment {
			return true
		}
	}
	return false
}
