package notion

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

// fakeNotion implements the notionapi service subsets against in-memory
// fixtures.
type fakeNotion struct {
	pages     []*notionapi.Page
	blocks    map[notionapi.BlockID]notionapi.Blocks
	databases []*notionapi.Database
	dbPages   map[string][]notionapi.Page
	pageErr   map[string]error
	me        *notionapi.User
}

func (f *fakeNotion) Do(_ context.Context, req *notionapi.SearchRequest) (*notionapi.SearchResponse, error) {
	resp := &notionapi.SearchResponse{}
	switch req.Filter.Value {
	case "page":
		for _, p := range f.pages {
			resp.Results = append(resp.Results, p)
		}
	case "database":
		for _, db := range f.databases {
			resp.Results = append(resp.Results, db)
		}
	}
	return resp, nil
}

func (f *fakeNotion) GetChildren(_ context.Context, id notionapi.BlockID, _ *notionapi.Pagination) (*notionapi.GetChildrenResponse, error) {
	return &notionapi.GetChildrenResponse{Results: f.blocks[id]}, nil
}

// Query pages through the fixture honoring PageSize, with the cursor as a
// plain offset, so the per-database cap is exercised for real.
func (f *fakeNotion) Query(_ context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	all := f.dbPages[string(id)]
	offset := 0
	if req.StartCursor != "" {
		offset, _ = strconv.Atoi(string(req.StartCursor))
	}
	end := offset + req.PageSize
	if end > len(all) {
		end = len(all)
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    all[offset:end],
		HasMore:    end < len(all),
		NextCursor: notionapi.Cursor(strconv.Itoa(end)),
	}, nil
}

func (f *fakeNotion) Get(_ context.Context, id notionapi.PageID) (*notionapi.Page, error) {
	if err := f.pageErr[string(id)]; err != nil {
		return nil, err
	}
	for _, p := range f.pages {
		if p.ID == notionapi.ObjectID(id) {
			return p, nil
		}
	}
	for _, pages := range f.dbPages {
		for i := range pages {
			if pages[i].ID == notionapi.ObjectID(id) {
				return &pages[i], nil
			}
		}
	}
	return nil, &notionapi.Error{Status: 404, Code: "object_not_found", Message: "page not found"}
}

func (f *fakeNotion) Me(context.Context) (*notionapi.User, error) {
	if f.me == nil {
		return nil, &notionapi.Error{Status: 401, Code: "unauthorized", Message: "invalid token"}
	}
	return f.me, nil
}

func newTestConnector(t *testing.T, fake *fakeNotion) (*Connector, *memory.DocumentStore) {
	t.Helper()

	creds := memory.NewCredentialsStore()
	docs := memory.NewDocumentStore()

	c, err := New(driven.ConnectorOptions{
		ConnectorID: "notion-test",
		App: domain.OAuthApp{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
		Credentials: creds,
		Documents:   docs,
	})
	require.NoError(t, err)

	c.newAPI = func(string) *notionAPI {
		return &notionAPI{search: fake, blocks: fake, databases: fake, pages: fake, users: fake}
	}

	// Integration tokens never expire, so Expiry stays zero.
	require.NoError(t, creds.Save(context.Background(), "notion-test", domain.ConnectorCredentials{
		AccessToken: "secret-token",
	}, 0))

	return c, docs
}

func rt(text string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: text}}
}

func testPage(id, title string) *notionapi.Page {
	return &notionapi.Page{
		ID:             notionapi.ObjectID(id),
		CreatedTime:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		LastEditedTime: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		URL:            "https://notion.so/" + id,
		Properties: notionapi.Properties{
			"title": &notionapi.TitleProperty{Title: rt(title)},
		},
	}
}

func TestRenderMarkdown_BlockRules(t *testing.T) {
	emoji := notionapi.Emoji("💡")
	fake := &fakeNotion{
		pages: []*notionapi.Page{testPage("page-1", "Runbook")},
		blocks: map[notionapi.BlockID]notionapi.Blocks{
			"page-1": {
				&notionapi.Heading1Block{Heading1: notionapi.Heading{RichText: rt("Overview")}},
				&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: []notionapi.RichText{
					{PlainText: "plain "},
					{PlainText: "bold", Annotations: &notionapi.Annotations{Bold: true}},
					{PlainText: " restart", Annotations: &notionapi.Annotations{Code: true}},
					{PlainText: "docs", Href: "https://example.com"},
				}}},
				&notionapi.CodeBlock{Code: notionapi.Code{RichText: rt("kubectl get pods"), Language: "bash"}},
				&notionapi.CalloutBlock{Callout: notionapi.Callout{
					RichText: rt("read this first"),
					Icon:     &notionapi.Icon{Emoji: &emoji},
				}},
				&notionapi.QuoteBlock{Quote: notionapi.Quote{RichText: rt("a wise quote")}},
				&notionapi.BulletedListItemBlock{
					BasicBlock:       notionapi.BasicBlock{ID: "list-1", HasChildren: true},
					BulletedListItem: notionapi.ListItem{RichText: rt("outer")},
				},
				&notionapi.NumberedListItemBlock{NumberedListItem: notionapi.ListItem{RichText: rt("first")}},
				&notionapi.NumberedListItemBlock{NumberedListItem: notionapi.ListItem{RichText: rt("second")}},
				&notionapi.ToDoBlock{ToDo: notionapi.ToDo{RichText: rt("ship it"), Checked: true}},
				&notionapi.ToDoBlock{ToDo: notionapi.ToDo{RichText: rt("not yet")}},
				&notionapi.TableBlock{
					BasicBlock: notionapi.BasicBlock{ID: "table-1", HasChildren: true},
					Table:      notionapi.Table{TableWidth: 2, HasColumnHeader: true},
				},
				&notionapi.ChildPageBlock{ChildPage: struct {
					Title string `json:"title"`
				}{Title: "Appendix"}},
				&notionapi.DividerBlock{},
			},
			"list-1": {
				&notionapi.BulletedListItemBlock{BulletedListItem: notionapi.ListItem{RichText: rt("inner")}},
			},
			"table-1": {
				&notionapi.TableRowBlock{TableRow: notionapi.TableRow{Cells: [][]notionapi.RichText{rt("Name"), rt("Value")}}},
				&notionapi.TableRowBlock{TableRow: notionapi.TableRow{Cells: [][]notionapi.RichText{rt("retries"), rt("3")}}},
			},
		},
	}
	c, _ := newTestConnector(t, fake)

	content, err := c.DownloadFile(context.Background(), "page-1")
	require.NoError(t, err)
	md := string(content.Content)

	assert.Contains(t, md, "# Runbook")
	assert.Contains(t, md, "# Overview")
	assert.Contains(t, md, "plain **bold** `restart`[docs](https://example.com)")
	assert.Contains(t, md, "```bash\nkubectl get pods\n```")
	assert.Contains(t, md, "> 💡 read this first")
	assert.Contains(t, md, "> a wise quote")
	assert.Contains(t, md, "- outer\n  - inner")
	assert.Contains(t, md, "1. first\n2. second")
	assert.Contains(t, md, "- [x] ship it")
	assert.Contains(t, md, "- [ ] not yet")
	assert.Contains(t, md, "| Name | Value |\n| --- | --- |\n| retries | 3 |")
	assert.Contains(t, md, "**Appendix**")
	assert.Contains(t, md, "---")
}

func TestListFiles_CapsDatabasePages(t *testing.T) {
	var dbPages []notionapi.Page
	for i := 0; i < maxDatabasePages+10; i++ {
		dbPages = append(dbPages, *testPage(fmt.Sprintf("db-page-%02d", i), fmt.Sprintf("Row %d", i)))
	}
	fake := &fakeNotion{
		pages:     []*notionapi.Page{testPage("page-1", "Standalone")},
		databases: []*notionapi.Database{{ID: "db-1"}},
		dbPages:   map[string][]notionapi.Page{"db-1": dbPages},
	}
	c, _ := newTestConnector(t, fake)

	files, err := c.ListFiles(context.Background(), domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 1+maxDatabasePages)
}

func TestListFiles_SinceAndLimit(t *testing.T) {
	old := testPage("page-old", "Old")
	old.LastEditedTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeNotion{pages: []*notionapi.Page{old, testPage("page-new", "New")}}
	c, _ := newTestConnector(t, fake)

	files, err := c.ListFiles(context.Background(), domain.ListOptions{
		Since: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "page-new", files[0].ID)

	files, err = c.ListFiles(context.Background(), domain.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSync_IdempotentForUnchangedContent(t *testing.T) {
	fake := &fakeNotion{
		pages: []*notionapi.Page{testPage("page-1", "Runbook")},
		blocks: map[notionapi.BlockID]notionapi.Blocks{
			"page-1": {&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: rt("hello")}}},
		},
	}
	c, docs := newTestConnector(t, fake)
	ctx := context.Background()

	first, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.FilesUpdated)

	second, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.FilesUpdated)

	doc, err := docs.Get(ctx, "notion-test", "page-1")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.SyncCount)
}

func TestSync_FailureTolerance(t *testing.T) {
	makeFake := func(broken int) *fakeNotion {
		fake := &fakeNotion{pageErr: map[string]error{}, blocks: map[notionapi.BlockID]notionapi.Blocks{}}
		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("page-%02d", i)
			fake.pages = append(fake.pages, testPage(id, "Page "+id))
			if i < broken {
				fake.pageErr[id] = &notionapi.Error{Status: 500, Code: "internal_server_error", Message: "boom"}
			}
		}
		return fake
	}

	// One of twenty failing sits inside the tolerance.
	c, _ := newTestConnector(t, makeFake(1))
	result, err := c.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FilesFailed)
	assert.Equal(t, 19, result.FilesUpdated)

	// Three of twenty exceeds it.
	c, _ = newTestConnector(t, makeFake(3))
	result, err = c.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.FilesFailed)
}

func TestRefreshCredentials_NeverAvailable(t *testing.T) {
	c, _ := newTestConnector(t, &fakeNotion{})

	_, err := c.RefreshCredentials(context.Background(), domain.ConnectorCredentials{
		AccessToken: "secret-token",
	})
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
}

func TestAuthenticate_NoCodeReturnsAuthURL(t *testing.T) {
	c, _ := newTestConnector(t, &fakeNotion{})

	res, err := c.Authenticate(context.Background(), domain.ConnectorCredentials{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.AuthURL, "api.notion.com/v1/oauth/authorize")
}

func TestTestConnection(t *testing.T) {
	fake := &fakeNotion{me: &notionapi.User{ID: "bot-1", Name: "Importer"}}
	c, _ := newTestConnector(t, fake)

	res, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Importer", res.Metadata["bot"])
}

func TestWrapError(t *testing.T) {
	err := wrapError(&notionapi.Error{Status: 404, Code: "object_not_found", Message: "gone"}, "get page")
	assert.True(t, domain.IsNotFound(err))
	assert.False(t, domain.IsRetryable(err))

	err = wrapError(&notionapi.Error{Status: 503, Code: "service_unavailable", Message: "later"}, "get page")
	assert.True(t, domain.IsRetryable(err))
}
