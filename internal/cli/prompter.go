package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Resolution is the user's answer to a duplicate conflict.
type Resolution int

// Duplicate resolutions.
const (
	ResolutionSkip Resolution = iota
	ResolutionForce
	ResolutionReplace
)

func (r Resolution) String() string {
	switch r {
	case ResolutionForce:
		return "force"
	case ResolutionReplace:
		return "replace"
	default:
		return "skip"
	}
}

// DuplicatePrompter asks the user how to resolve a rejected duplicate.
type DuplicatePrompter struct {
	reader *NonBlockingReader
	writer io.Writer
}

// NewDuplicatePrompter creates a prompter. Nil arguments default to the
// process's stdin and stdout.
func NewDuplicatePrompter(reader io.Reader, writer io.Writer) *DuplicatePrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &DuplicatePrompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// Resolve shows both sides of the conflict and reads a choice until a valid
// one is given. Closed input resolves to ResolutionSkip.
func (p *DuplicatePrompter) Resolve(ctx context.Context, match *model.DuplicateMatch) (Resolution, error) {
	title := "Possible duplicate"
	if match.Kind == model.DuplicateExact {
		title = "Already imported"
	}

	content := "New:\n" + FormatTransaction(&match.Candidate) +
		"\n\nExisting:\n" + FormatTransaction(&match.Existing)
	if _, err := fmt.Fprintln(p.writer, RenderBox(title, content)); err != nil {
		return ResolutionSkip, fmt.Errorf("failed to write duplicate box: %w", err)
	}

	if _, err := fmt.Fprintln(p.writer, "  [F] Save anyway\n  [R] Replace the existing transaction\n  [S] Skip"); err != nil {
		return ResolutionSkip, fmt.Errorf("failed to write options: %w", err)
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Choice")); err != nil {
			return ResolutionSkip, fmt.Errorf("failed to write prompt: %w", err)
		}

		answer, err := p.reader.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return ResolutionSkip, nil
		}
		if err != nil {
			return ResolutionSkip, err
		}

		switch strings.ToLower(answer) {
		case "f", "force":
			return ResolutionForce, nil
		case "r", "replace":
			return ResolutionReplace, nil
		case "s", "skip", "":
			return ResolutionSkip, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("Unknown choice %q", answer))); err != nil {
			return ResolutionSkip, fmt.Errorf("failed to write warning: %w", err)
		}
	}
}
