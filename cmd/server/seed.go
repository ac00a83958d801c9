package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hperssn/chefmentor/internal/domain"
	"github.com/hperssn/chefmentor/internal/log"
	"github.com/hperssn/chefmentor/internal/storage"
)

type seedFile struct {
	Recipes []seedRecipe `yaml:"recipes"`
}

type seedRecipe struct {
	ID    string     `yaml:"id"`
	Title string     `yaml:"title"`
	Steps []seedStep `yaml:"steps"`
}

type seedStep struct {
	Number        int    `yaml:"step_number"`
	Instruction   string `yaml:"instruction"`
	ExpectedState string `yaml:"expected_state"`
}

func newSeedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load recipes from a YAML file into the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			recipes, err := loadRecipes(file)
			if err != nil {
				return err
			}

			repo, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer repo.Close()

			return seed(cmd.Context(), repo, recipes)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "recipes.yaml", "recipe YAML file")
	return cmd
}

// loadRecipes parses a seed file. Steps without a step_number are numbered
// by position.
func loadRecipes(path string) ([]*domain.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(f.Recipes) == 0 {
		return nil, errors.New("seed file contains no recipes")
	}

	recipes := make([]*domain.Recipe, 0, len(f.Recipes))
	for _, r := range f.Recipes {
		recipe := &domain.Recipe{ID: r.ID, Title: r.Title}
		if recipe.ID == "" {
			recipe.ID = uuid.New().String()
		}
		for i, s := range r.Steps {
			if s.Number == 0 {
				s.Number = i + 1
			}
			recipe.Steps = append(recipe.Steps, domain.Step{
				Number:        s.Number,
				Instruction:   s.Instruction,
				ExpectedState: s.ExpectedState,
			})
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func seed(ctx context.Context, repo storage.Repository, recipes []*domain.Recipe) error {
	logger := log.WithComponent("seed")
	for _, r := range recipes {
		if err := repo.SaveRecipe(ctx, r); err != nil {
			return fmt.Errorf("save recipe %s: %w", r.ID, err)
		}
		logger.Info().
			Str(log.FieldRecipeID, r.ID).
			Int("steps", len(r.Steps)).
			Msg("recipe saved")
	}
	return nil
}
