package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"

	"github.com/williamokano/bak/pkg/config"
)

// ErrAborted is returned when the user cancels the entry form
var ErrAborted = errors.New("aborted by user")

// Prompter fills in the fields of a new entry interactively
type Prompter interface {
	Prompt(ctx context.Context, entry config.BackupEntry) (config.BackupEntry, error)
}

type huhPrompter struct{}

func (huhPrompter) Prompt(ctx context.Context, entry config.BackupEntry) (config.BackupEntry, error) {
	compression := entry.Compression.String()
	keep := strconv.Itoa(entry.Keep)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Label shown in logs, also available as /n in rename templates").
				Value(&entry.Name),
			huh.NewInput().
				Title("Description").
				Value(&entry.Description),
			huh.NewSelect[string]().
				Title("Compression").
				Options(
					huh.NewOption("None (plain copy)", "none"),
					huh.NewOption("Solid 7z archive", "solid"),
					huh.NewOption("Zip archive", "zip"),
				).
				Value(&compression),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Subfolder").
				Description("Relative to the destination root, empty for the root itself").
				Value(&entry.Subfolder),
			huh.NewInput().
				Title("Match").
				Description("Only for folders: wildcard filter such as *.log;*.txt").
				Value(&entry.Match),
			huh.NewInput().
				Title("Rename").
				Description("Template: /s stamp, /d date, /t time, /o original, /n name, /b subfolder").
				Value(&entry.Rename),
			huh.NewInput().
				Title("Keep").
				Description("Newest outputs to keep when renaming, 0 keeps everything").
				Value(&keep).
				Validate(validateKeep),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return entry, ErrAborted
		}
		return entry, errors.Wrap(err, "entry form failed")
	}

	c, err := config.ParseCompression(compression)
	if err != nil {
		return entry, err
	}
	entry.Compression = c

	entry.Keep, _ = strconv.Atoi(strings.TrimSpace(keep))
	return entry, nil
}

func validateKeep(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("keep must be a whole number, 0 or more")
	}
	return nil
}
