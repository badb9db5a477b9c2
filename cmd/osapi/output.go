package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"osapi/internal/api"
	"osapi/internal/format"
	"osapi/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{Indent: true}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeSentencePage(page api.SentencePage) error {
	for _, sentence := range page.Data {
		if err := writePlain("%s\n", formatSentenceLine(sentence)); err != nil {
			return err
		}
	}
	return writePlain("page %d of %d (%s total)\n", page.CurrentPage, page.LastPage, humanize.Comma(int64(page.Total)))
}

func writeSentenceDetail(sentence models.Sentence) error {
	lines := []string{
		fmt.Sprintf("id: %d", sentence.ID),
		fmt.Sprintf("sentence: %s", sentence.Sentence),
	}
	if sentence.Description != nil {
		lines = append(lines, fmt.Sprintf("description: %s", *sentence.Description))
	}
	lines = append(lines,
		fmt.Sprintf("image: %s", sentence.Image),
		fmt.Sprintf("image_url: %s", sentence.ImageURL),
		fmt.Sprintf("created_at: %s (%s)", formatTime(sentence.CreatedAt), humanize.Time(sentence.CreatedAt)),
		fmt.Sprintf("updated_at: %s (%s)", formatTime(sentence.UpdatedAt), humanize.Time(sentence.UpdatedAt)),
	)
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatSentenceLine(sentence models.Sentence) string {
	return fmt.Sprintf("%d  %s  [%s]", sentence.ID, sentence.Sentence, sentence.Image)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
