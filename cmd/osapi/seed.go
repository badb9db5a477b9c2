package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"osapi/internal/config"
	"osapi/internal/models"
	"osapi/internal/server"
)

// seedFile is the YAML layout accepted by `osapi seed`.
type seedFile struct {
	Sentences []seedSentence `yaml:"sentences"`
}

type seedSentence struct {
	Sentence    string  `yaml:"sentence"`
	Description *string `yaml:"description"`
	Image       string  `yaml:"image"`
}

type seedResult struct {
	Created []models.Sentence `json:"created"`
}

func newSeedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load sentences and their images from a YAML file",
		Args:  requireExactlyArgs(1, "seed file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}

			st, blobs, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := localSentenceService(cfg, st, blobs)
			result, err := applySeed(cmd.Context(), svc, entries)
			if *jsonOutput {
				if writeErr := writeJSON(result); writeErr != nil {
					return writeErr
				}
				return err
			}
			for _, sentence := range result.Created {
				if writeErr := writePlain("%s\n", formatSentenceLine(sentence)); writeErr != nil {
					return writeErr
				}
			}
			return err
		},
	}
}

// loadSeedFile parses path and reads every referenced image. Image paths are
// relative to the YAML file.
func loadSeedFile(path string) ([]server.SentenceForm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Sentences) == 0 {
		return nil, errors.New("seed file has no sentences")
	}

	baseDir := filepath.Dir(path)
	forms := make([]server.SentenceForm, 0, len(file.Sentences))
	for i, entry := range file.Sentences {
		if strings.TrimSpace(entry.Image) == "" {
			return nil, fmt.Errorf("sentence %d: image is required", i+1)
		}
		imagePath := entry.Image
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(baseDir, imagePath)
		}
		image, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: read image: %w", i+1, err)
		}
		forms = append(forms, server.SentenceForm{
			Sentence:    entry.Sentence,
			Description: entry.Description,
			Image:       &server.ImageUpload{Filename: filepath.Base(imagePath), Data: image},
		})
	}
	return forms, nil
}

type sentenceCreator interface {
	Create(ctx context.Context, form server.SentenceForm) (models.Sentence, error)
}

// applySeed creates sentences in order and stops at the first failure.
func applySeed(ctx context.Context, svc sentenceCreator, forms []server.SentenceForm) (seedResult, error) {
	result := seedResult{Created: make([]models.Sentence, 0, len(forms))}
	for i, form := range forms {
		created, err := svc.Create(ctx, form)
		if err != nil {
			return result, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		result.Created = append(result.Created, created)
	}
	return result, nil
}
