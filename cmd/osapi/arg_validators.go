package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

func requireSentenceID(cmd *cobra.Command, args []string) error {
	if err := requireExactlyArgs(1, "sentence id is required")(cmd, args); err != nil {
		return err
	}
	_, err := parseSentenceID(args[0])
	return err
}

func parseSentenceID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid sentence id %q", raw)
	}
	return id, nil
}
