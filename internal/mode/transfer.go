package mode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

// exportFile is the YAML document written by Export.
type exportFile struct {
	Modes []models.Mode `yaml:"modes"`
}

// ImportResult reports the outcome of Import.
type ImportResult struct {
	Added   []string
	Skipped []string
}

// Export writes the user's modes as YAML.
func Export(ctx context.Context, modes store.ModeStore, userID string, w io.Writer) (int, error) {
	list, err := modes.ListModes(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list modes: %w", err)
	}

	doc := exportFile{Modes: list}
	if doc.Modes == nil {
		doc.Modes = []models.Mode{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode modes: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode modes: %w", err)
	}
	return len(doc.Modes), nil
}

// Import reads modes from YAML and adds them. Modes whose name already
// exists are skipped; invalid entries abort the import.
func Import(ctx context.Context, modes store.ModeStore, userID string, r io.Reader) (ImportResult, error) {
	var doc exportFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("decode modes: %w", err)
	}

	var res ImportResult
	for i, em := range doc.Modes {
		_, err := Add(ctx, modes, userID, em.Name, em.Description)
		switch {
		case errors.Is(err, ErrModeExists):
			res.Skipped = append(res.Skipped, em.Name)
		case err != nil:
			return res, fmt.Errorf("mode %d: %w", i+1, err)
		default:
			res.Added = append(res.Added, em.Name)
		}
	}
	return res, nil
}
