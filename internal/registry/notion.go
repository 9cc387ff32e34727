package registry

import (
	"context"
	"sort"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/pkg/notion"
)

// LoadNotionRegistry queries a Notion question-registry database for enabled
// rows and returns them as cases sorted by question ID. Rows with missing
// criteria or an unparseable outcome are skipped with a warning — registry
// hygiene problems should not fail a batch that the other rows can run.
func LoadNotionRegistry(ctx context.Context, client notion.Client, dbID string) ([]model.QuestionCase, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Enabled",
			Checkbox: &notionapi.CheckboxFilterCondition{
				Equals: true,
			},
		},
	}

	pages, err := notion.QueryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load notion registry")
	}

	var cases []model.QuestionCase
	for _, p := range pages {
		c, err := parseQuestionPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed question page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		cases = append(cases, c)
	}

	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].Question.ID < cases[j].Question.ID
	})
	return cases, nil
}

func parseQuestionPage(p notionapi.Page) (model.QuestionCase, error) {
	q := model.Question{
		ID:  string(p.ID),
		URL: p.URL,
	}

	// Title (title)
	if prop, ok := p.Properties["Title"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			q.Title = plainText(tp.Title)
		}
	}

	// ID (rich_text) — stable question identifier; falls back to page ID.
	if prop, ok := p.Properties["ID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			if id := plainText(rtp.RichText); id != "" {
				q.ID = id
			}
		}
	}

	// Criteria (rich_text)
	if prop, ok := p.Properties["Criteria"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			q.Criteria = plainText(rtp.RichText)
		}
	}

	// URL (url) — the question's public page, overriding the Notion URL.
	if prop, ok := p.Properties["URL"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok && up.URL != "" {
			q.URL = up.URL
		}
	}

	// Actual (select)
	var actual string
	if prop, ok := p.Properties["Actual"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			actual = sp.Select.Name
		}
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

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
