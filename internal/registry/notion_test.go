package registry

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
)

// mockNotionClient implements notion.Client for registry tests.
type mockNotionClient struct {
	mock.Mock
}

func (m *mockNotionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func questionPage(pageID, questionID, title, criteria, actual string) notionapi.Page {
	props := notionapi.Properties{
		"Title": &notionapi.TitleProperty{
			Type:  "title",
			Title: []notionapi.RichText{{PlainText: title}},
		},
		"Criteria": &notionapi.RichTextProperty{
			Type:     "rich_text",
			RichText: []notionapi.RichText{{PlainText: criteria}},
		},
		"Actual": &notionapi.SelectProperty{
			Type:   "select",
			Select: notionapi.Option{Name: actual},
		},
	}
	if questionID != "" {
		props["ID"] = &notionapi.RichTextProperty{
			Type:     "rich_text",
			RichText: []notionapi.RichText{{PlainText: questionID}},
		}
	}
	return notionapi.Page{
		ID:         notionapi.ObjectID(pageID),
		URL:        "https://notion.so/" + pageID,
		Properties: props,
	}
}

func TestLoadNotionRegistry(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				questionPage("p2", "q-2", "Second question", "Resolves TRUE if Y happens.", "FALSE"),
				questionPage("p1", "q-1", "First question", "Resolves TRUE if X happens.", "TRUE"),
			},
			HasMore: false,
		}, nil).Once()

	cases, err := LoadNotionRegistry(ctx, mc, "db-1")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Sorted by question ID regardless of database order.
	assert.Equal(t, "q-1", cases[0].Question.ID)
	assert.Equal(t, model.LabelTrue, cases[0].Actual)
	assert.Equal(t, "First question", cases[0].Question.Title)
	assert.Equal(t, "q-2", cases[1].Question.ID)
	mc.AssertExpectations(t)
}

func TestLoadNotionRegistrySkipsMalformedRows(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				questionPage("p1", "q-1", "Valid", "Resolves TRUE if X.", "TRUE"),
				questionPage("p2", "q-2", "No criteria", "", "TRUE"),
				questionPage("p3", "q-3", "Bad label", "Resolves TRUE if Z.", "MAYBE"),
			},
			HasMore: false,
		}, nil).Once()

	cases, err := LoadNotionRegistry(ctx, mc, "db-1")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "q-1", cases[0].Question.ID)
	mc.AssertExpectations(t)
}

func TestLoadNotionRegistryFallsBackToPageID(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				questionPage("page-uuid", "", "Untagged", "Resolves TRUE if X.", "TRUE"),
			},
			HasMore: false,
		}, nil).Once()

	cases, err := LoadNotionRegistry(ctx, mc, "db-1")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "page-uuid", cases[0].Question.ID)
	mc.AssertExpectations(t)
}
