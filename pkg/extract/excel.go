package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const excelToolTimeout = 300 * time.Second

// excelTable converts a workbook to CSV using unoconv and renders the head
// rows of each sheet as a compact markdown-like table excerpt.
func (e *Extractor) excelTable(ctx context.Context, path string, ext string) (string, error) {
	sheets, err := transformExcelToCsv(ctx, path, ext)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	sort.Strings(names)

	var out strings.Builder
	remaining := e.opts.ExcelNRows
	for _, name := range names {
		if remaining <= 0 {
			break
		}

		rows, err := headRows(sheets[name], remaining)
		if err != nil || len(rows) == 0 {
			continue
		}
		remaining -= len(rows)

		if out.Len() > 0 {
			out.WriteString("\n")
		}
		if len(sheets) > 1 {
			out.WriteString("--- " + name + " ---\n")
		}
		writeMarkdownTable(&out, rows)
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("workbook has no readable rows")
	}
	return out.String(), nil
}

// transformExcelToCsv converts an Excel file (.xlsx, .xls) to CSV files using
// unoconv, one per sheet. Returns a map of sheet name to CSV content.
func transformExcelToCsv(ctx context.Context, path string, ext string) (map[string][]byte, error) {
	if _, err := exec.LookPath("unoconv"); err != nil {
		return nil, fmt.Errorf("unoconv not found in PATH: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "corpusgraph-excel-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	excelPath := filepath.Join(tmpDir, fmt.Sprintf("input.%s", ext))
	if err := os.WriteFile(excelPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, excelToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "unoconv", "-f", "csv", excelPath)
	cmd.Dir = tmpDir
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("unoconv timed out")
	}
	if err != nil {
		return nil, fmt.Errorf("unoconv failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	// unoconv writes input.csv for a single sheet and input-SheetName.csv per
	// sheet for multi-sheet workbooks.
	matches, err := filepath.Glob(filepath.Join(tmpDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob csv: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CSV files produced")
	}

	result := make(map[string][]byte, len(matches))
	for _, f := range matches {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", f, err)
		}

		base := strings.TrimSuffix(filepath.Base(f), ".csv")
		sheetName := strings.TrimPrefix(base, "input-")
		if sheetName == "input" {
			sheetName = "Sheet1"
		}

		result[sheetName] = content
	}

	return result, nil
}

// headRows parses at most max records from CSV content, tolerating ragged
// rows.
func headRows(content []byte, max int) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	rows := make([][]string, 0, max)
	for len(rows) < max {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func writeMarkdownTable(out *strings.Builder, rows [][]string) {
	for i, row := range rows {
		for j := range row {
			row[j] = strings.ReplaceAll(row[j], "|", "\\|")
		}
		out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			separators := make([]string, len(row))
			for j := range separators {
				separators[j] = "---"
			}
			out.WriteString("| " + strings.Join(separators, " | ") + " |\n")
		}
	}
}
