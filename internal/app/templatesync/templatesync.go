package templatesync

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage"
)

// ServiceConfig is the configuration for the template sync service.
type ServiceConfig struct {
	Repository storage.TemplateRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TemplateSync"})
	return nil
}

// Service exports and imports stage templates as YAML, so pipelines can be
// shared between projects.
type Service struct {
	repo   storage.TemplateRepository
	logger log.Logger
}

// NewService creates a new template sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

type templateYAML struct {
	Name                   string   `yaml:"name"`
	Description            string   `yaml:"description,omitempty"`
	SortOrder              int      `yaml:"sort_order"`
	InputSource            string   `yaml:"input_source"`
	OutputFormat           string   `yaml:"output_format"`
	OutputSchema           string   `yaml:"output_schema,omitempty"`
	PromptTemplate         string   `yaml:"prompt_template"`
	AllowedTools           []string `yaml:"allowed_tools,omitempty"`
	CommitsChanges         bool     `yaml:"commits_changes,omitempty"`
	CommitPrefix           string   `yaml:"commit_prefix,omitempty"`
	CreatesPR              bool     `yaml:"creates_pr,omitempty"`
	IsTerminal             bool     `yaml:"is_terminal,omitempty"`
	TriggersStageSelection bool     `yaml:"triggers_stage_selection,omitempty"`
	RequiresUserInput      bool     `yaml:"requires_user_input,omitempty"`
	Optional               bool     `yaml:"optional,omitempty"`
	ResultMode             string   `yaml:"result_mode"`
}

type exportYAML struct {
	Templates []templateYAML `yaml:"templates"`
}

// Export writes every stage template of the project as YAML.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	templates, err := s.repo.ListStageTemplates(ctx)
	if err != nil {
		return fmt.Errorf("could not list stage templates: %w", err)
	}

	out := exportYAML{Templates: make([]templateYAML, 0, len(templates))}
	for _, t := range templates {
		out.Templates = append(out.Templates, templateYAML{
			Name:                   t.Name,
			Description:            t.Description,
			SortOrder:              t.SortOrder,
			InputSource:            string(t.InputSource),
			OutputFormat:           string(t.OutputFormat),
			OutputSchema:           t.OutputSchema,
			PromptTemplate:         t.PromptTemplate,
			AllowedTools:           t.AllowedTools,
			CommitsChanges:         t.CommitsChanges,
			CommitPrefix:           t.CommitPrefix,
			CreatesPR:              t.CreatesPR,
			IsTerminal:             t.IsTerminal,
			TriggersStageSelection: t.TriggersStageSelection,
			RequiresUserInput:      t.RequiresUserInput,
			Optional:               t.Optional,
			ResultMode:             string(t.ResultMode),
		})
	}

	if err := yaml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("could not encode templates: %w", err)
	}
	return nil
}

// Import reads templates from YAML and upserts them by name: existing
// templates are updated in place, unknown ones created.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	var in exportYAML
	if err := yaml.NewDecoder(r).Decode(&in); err != nil {
		return 0, fmt.Errorf("could not decode templates: %w", err)
	}

	for i, y := range in.Templates {
		tpl := model.StageTemplate{
			Name:                   y.Name,
			Description:            y.Description,
			SortOrder:              y.SortOrder,
			InputSource:            model.InputSource(y.InputSource),
			OutputFormat:           model.OutputFormat(y.OutputFormat),
			OutputSchema:           y.OutputSchema,
			PromptTemplate:         y.PromptTemplate,
			AllowedTools:           y.AllowedTools,
			CommitsChanges:         y.CommitsChanges,
			CommitPrefix:           y.CommitPrefix,
			CreatesPR:              y.CreatesPR,
			IsTerminal:             y.IsTerminal,
			TriggersStageSelection: y.TriggersStageSelection,
			RequiresUserInput:      y.RequiresUserInput,
			Optional:               y.Optional,
			ResultMode:             model.ResultMode(y.ResultMode),
		}

		existing, err := s.repo.GetStageTemplateByName(ctx, y.Name)
		switch {
		case err == nil:
			tpl.ID = existing.ID
			if err := s.repo.UpdateStageTemplate(ctx, tpl); err != nil {
				return i, fmt.Errorf("could not update template %q: %w", y.Name, err)
			}
		case errors.Is(err, model.ErrNotFound):
			tpl.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
			if err := s.repo.CreateStageTemplate(ctx, tpl); err != nil {
				return i, fmt.Errorf("could not create template %q: %w", y.Name, err)
			}
		default:
			return i, fmt.Errorf("could not look up template %q: %w", y.Name, err)
		}
	}

	s.logger.Infof("Imported %d templates", len(in.Templates))

	return len(in.Templates), nil
}
