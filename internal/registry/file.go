// Package registry loads ordered question sets from files and external
// registries, normalizing every source into the same []model.QuestionCase.
package registry

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/resolver-cli/internal/model"
)

// LoadFile loads a question set, dispatching on the file extension.
func LoadFile(path string) ([]model.QuestionCase, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, eris.Errorf("registry: unsupported question-set format %q", filepath.Ext(path))
	}
}

// yamlQuestion is the on-disk shape of one question entry.
type yamlQuestion struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	URL       string `yaml:"url"`
	Criteria  string `yaml:"criteria"`
	CloseTime string `yaml:"close_time"`
	Actual    string `yaml:"actual"`
}

// LoadYAML reads a `questions:` document. Load order is preserved; a
// malformed entry fails the load with its index so the file can be fixed.
func LoadYAML(path string) ([]model.QuestionCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var doc struct {
		Questions []yamlQuestion `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}

	cases := make([]model.QuestionCase, 0, len(doc.Questions))
	for i, q := range doc.Questions {
		c, err := buildCase(q.ID, q.Title, q.URL, q.Criteria, q.CloseTime, q.Actual)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: %s entry %d", path, i)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// csvHeader is the required header row for CSV and XLSX question sets.
// close_time is optional and may be omitted entirely.
var csvHeader = []string{"id", "title", "url", "criteria", "actual"}

// LoadCSV streams a question set row-wise from a CSV file with the header
// `id,title,url,criteria,actual[,close_time]`.
func LoadCSV(path string) ([]model.QuestionCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read header of %s", path)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: %s", path)
	}

	var cases []model.QuestionCase
	for row := 1; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "registry: %s row %d", path, row)
		}
		c, err := buildCase(
			field(rec, cols["id"]),
			field(rec, cols["title"]),
			field(rec, cols["url"]),
			field(rec, cols["criteria"]),
			field(rec, cols["close_time"]),
			field(rec, cols["actual"]),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: %s row %d", path, row)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// LoadXLSX reads the first sheet of a spreadsheet with the same columns as
// the CSV format, for question sets maintained in Excel.
func LoadXLSX(path string) ([]model.QuestionCase, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("registry: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("registry: %s first sheet is empty", path)
	}

	cols, err := headerIndex(rowStrings(sheet.Rows[0]))
	if err != nil {
		return nil, eris.Wrapf(err, "registry: %s", path)
	}

	var cases []model.QuestionCase
	for row, r := range sheet.Rows[1:] {
		rec := rowStrings(r)
		if blankRow(rec) {
			continue
		}
		c, err := buildCase(
			field(rec, cols["id"]),
			field(rec, cols["title"]),
			field(rec, cols["url"]),
			field(rec, cols["criteria"]),
			field(rec, cols["close_time"]),
			field(rec, cols["actual"]),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: %s row %d", path, row+1)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// headerIndex maps the required column names to their positions. Unknown
// extra columns are ignored; a missing required column fails.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range csvHeader {
		if _, ok := cols[name]; !ok {
			return nil, eris.Errorf("missing required column %q", name)
		}
	}
	if _, ok := cols["close_time"]; !ok {
		cols["close_time"] = -1
	}
	return cols, nil
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func rowStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}

// buildCase validates the raw fields into a QuestionCase. The ground-truth
// label is parsed at the boundary; unknown literals fail here, never later.
func buildCase(id, title, url, criteria, closeTime, actual string) (model.QuestionCase, error) {
	q := model.Question{
		ID:       id,
		Title:    title,
		URL:      url,
		Criteria: criteria,
	}
	if closeTime != "" {
		t, err := parseCloseTime(closeTime)
		if err != nil {
			return model.QuestionCase{}, err
		}
		q.CloseTime = t
	}

	label, err := model.ParseGroundTruth(actual)
	if err != nil {
		return model.QuestionCase{}, err
	}

	c := model.QuestionCase{Question: q, Actual: label}
	if err := c.Validate(); err != nil {
		return model.QuestionCase{}, err
	}
	return c, nil
}

func parseCloseTime(s string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, eris.Errorf("registry: unparseable close_time %q", s)
}
