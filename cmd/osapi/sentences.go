package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"osapi/internal/api"
	"osapi/internal/config"
)

func newSentencesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sentences",
		Aliases: []string{"s"},
		Short:   "Manage object sentences through the API",
	}
	cmd.AddCommand(
		newSentencesListCmd(cfg, jsonOutput),
		newSentencesShowCmd(cfg, jsonOutput),
		newSentencesCreateCmd(cfg, jsonOutput),
		newSentencesUpdateCmd(cfg, jsonOutput),
		newSentencesDeleteCmd(cfg),
	)
	return cmd
}

func newSentencesListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of sentences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListSentences(cmd.Context(), page)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeSentencePage(resp)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newSentencesShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one sentence",
		Args:  requireSentenceID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseSentenceID(args[0])
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetSentence(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeSentenceDetail(resp)
			})
		},
	}
}

type sentenceFlags struct {
	sentence    string
	description string
	image       string
}

func (f *sentenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sentence, "sentence", "", "sentence text")
	cmd.Flags().StringVar(&f.description, "description", "", "description; pass an empty value to clear it")
	cmd.Flags().StringVar(&f.image, "image", "", "path to a jpeg, png, or gif image")
}

func (f *sentenceFlags) input(cmd *cobra.Command) (api.SentenceInput, error) {
	in := api.SentenceInput{Sentence: f.sentence}
	if cmd.Flags().Changed("description") {
		description := f.description
		in.Description = &description
	}
	if f.image != "" {
		data, err := os.ReadFile(f.image)
		if err != nil {
			return in, fmt.Errorf("read image: %w", err)
		}
		in.ImageName = filepath.Base(f.image)
		in.ImageData = data
	}
	return in, nil
}

func newSentencesCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var flags sentenceFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sentence with an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.CreateSentence(cmd.Context(), in)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeSentenceDetail(resp)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newSentencesUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var flags sentenceFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a sentence; the image is replaced only when --image is given",
		Args:  requireSentenceID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseSentenceID(args[0])
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateSentence(cmd.Context(), id, in)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeSentenceDetail(resp)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newSentencesDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sentence and its image",
		Args:  requireSentenceID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseSentenceID(args[0])
			return withClient(cfg, func(client *api.Client) error {
				message, err := client.DeleteSentence(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writePlain("%s\n", message)
			})
		},
	}
}
