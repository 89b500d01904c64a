package tui

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/semcraft/internal/adapter"
	"github.com/leapstack-labs/semcraft/internal/config"
	"github.com/leapstack-labs/semcraft/internal/curate"
	"github.com/leapstack-labs/semcraft/internal/docs"
	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/store"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

func openAdapter(ctx context.Context, cfg *config.Config) (adapter.Adapter, error) {
	adapterCfg := adapter.Config{
		Type:     cfg.Connection.Type,
		Path:     cfg.Connection.Path,
		Host:     cfg.Connection.Host,
		Port:     cfg.Connection.Port,
		Database: cfg.Connection.Database,
		Username: cfg.Connection.User,
		Password: cfg.Connection.Password,
		Schema:   cfg.Connection.Schema,
	}
	a, err := adapter.New(adapterCfg)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, adapterCfg); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Connection.Type, err)
	}
	return a, nil
}

// defaultRefiner runs the curation pipeline over a fresh connection.
func defaultRefiner(cfg *config.Config) RefineFunc {
	return func(ctx context.Context, draftText string, onState func(curate.State)) curate.Result {
		a, err := openAdapter(ctx, cfg)
		if err != nil {
			return curate.Result{Err: "Error encountered: " + err.Error()}
		}
		defer a.Close()

		pipeline := curate.NewPipeline(
			docs.NewFetcher(),
			curate.NewCompletionClient(cfg.Connection.Namespace),
			a.DB(),
		)
		if onState != nil {
			pipeline.OnState(onState)
		}

		return pipeline.Refine(ctx, curate.Request{
			DocsURL:    cfg.Curation.DocsURL,
			SectionIDs: cfg.Curation.Sections,
			Draft:      draftText,
			Model:      cfg.Curation.Model,
		})
	}
}

// defaultStasher uploads the temporary validation copy.
func defaultStasher(cfg *config.Config) StashFunc {
	return func(ctx context.Context, dest workflow.Destination, draft *model.Draft) error {
		a, err := openAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return store.NewStage(a.DB(), dest).StashValidated(ctx, draft)
	}
}

// defaultUploader uploads the final artifact.
func defaultUploader(cfg *config.Config) UploadFunc {
	return func(ctx context.Context, dest workflow.Destination, draft *model.Draft, fileName string) error {
		a, err := openAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return store.NewStage(a.DB(), dest).UploadModel(ctx, draft, fileName)
	}
}

// loadDraftFile reads and parses a model YAML file.
func loadDraftFile(path string) (*model.Draft, error) {
	if path == "" {
		return nil, fmt.Errorf("file path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	draft, err := model.FromYAML(string(raw))
	if err != nil {
		return nil, err
	}
	if !draft.Exists() {
		return nil, fmt.Errorf("imported model has no name")
	}
	return draft, nil
}
