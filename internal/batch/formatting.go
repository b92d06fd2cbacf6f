package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(results []*pipeline.ScanResult, imagePaths []string, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(results, imagePaths)
	case "csv":
		// Rows carry the source path, so failed files simply have no rows.
		return pipeline.ToCSVResults(results)
	default: // text
		return formatText(results, imagePaths)
	}
}

// formatJSON formats results as JSON.
func formatJSON(results []*pipeline.ScanResult, imagePaths []string) (string, error) {
	batchResult := struct {
		Images []struct {
			File string               `json:"file"`
			Scan *pipeline.ScanResult `json:"scan"`
		} `json:"images"`
	}{}

	batchResult.Images = make([]struct {
		File string               `json:"file"`
		Scan *pipeline.ScanResult `json:"scan"`
	}, len(results))

	for i, res := range results {
		batchResult.Images[i] = struct {
			File string               `json:"file"`
			Scan *pipeline.ScanResult `json:"scan"`
		}{
			File: imagePaths[i],
			Scan: res,
		}
	}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

// formatText formats results as plain text, one report per file.
func formatText(results []*pipeline.ScanResult, imagePaths []string) (string, error) {
	var output strings.Builder
	for i, res := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", imagePaths[i]))
		if res == nil {
			continue
		}
		text, err := pipeline.ToText(res)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
	}
	return output.String(), nil
}
