package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/corpushq/connectors/internal/core/services"
)

const childPageSize = 100

// renderer walks a page's block tree and emits markdown. Notion returns
// block children one level at a time, so nested structures (toggles, list
// items, columns, tables) trigger further fetches.
type renderer struct {
	api     *notionAPI
	limiter *services.RateLimiter
}

// page renders the full block tree under pageID.
func (r *renderer) page(ctx context.Context, pageID string) (string, error) {
	return r.renderChildren(ctx, notionapi.BlockID(pageID), 0)
}

// children fetches every child block of id, following cursors.
func (r *renderer) children(ctx context.Context, id notionapi.BlockID) (notionapi.Blocks, error) {
	var all notionapi.Blocks
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := r.api.blocks.GetChildren(ctx, id, &notionapi.Pagination{
			StartCursor: notionapi.Cursor(cursor),
			PageSize:    childPageSize,
		})
		if err != nil {
			return nil, wrapError(err, "fetch block children")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = string(resp.NextCursor)
	}
}

func (r *renderer) renderChildren(ctx context.Context, id notionapi.BlockID, depth int) (string, error) {
	blocks, err := r.children(ctx, id)
	if err != nil {
		return "", err
	}
	return r.render(ctx, blocks, depth)
}

// nested resolves a block's children, preferring ones already inlined in the
// payload over another API round trip.
func (r *renderer) nested(ctx context.Context, blk notionapi.Block, inlined notionapi.Blocks, depth int) (string, error) {
	if len(inlined) > 0 {
		return r.render(ctx, inlined, depth)
	}
	if !blk.GetHasChildren() {
		return "", nil
	}
	return r.renderChildren(ctx, blk.GetID(), depth)
}

func (r *renderer) render(ctx context.Context, blocks notionapi.Blocks, depth int) (string, error) {
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)
	ordinal := 0

	for _, blk := range blocks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, ok := blk.(*notionapi.NumberedListItemBlock); !ok {
			ordinal = 0
		}

		switch b := blk.(type) {
		case *notionapi.ParagraphBlock:
			if text := inline(b.Paragraph.RichText); text != "" {
				sb.WriteString(indent + text + "\n\n")
			}
		case *notionapi.Heading1Block:
			sb.WriteString(indent + "# " + inline(b.Heading1.RichText) + "\n\n")
		case *notionapi.Heading2Block:
			sb.WriteString(indent + "## " + inline(b.Heading2.RichText) + "\n\n")
		case *notionapi.Heading3Block:
			sb.WriteString(indent + "### " + inline(b.Heading3.RichText) + "\n\n")
		case *notionapi.CodeBlock:
			sb.WriteString(indent + "```" + b.Code.Language + "\n")
			sb.WriteString(plainText(b.Code.RichText) + "\n")
			sb.WriteString(indent + "```\n\n")
		case *notionapi.CalloutBlock:
			prefix := "> "
			if b.Callout.Icon != nil && b.Callout.Icon.Emoji != nil {
				prefix += string(*b.Callout.Icon.Emoji) + " "
			}
			sb.WriteString(indent + prefix + inline(b.Callout.RichText) + "\n\n")
		case *notionapi.QuoteBlock:
			sb.WriteString(indent + "> " + inline(b.Quote.RichText) + "\n\n")
		case *notionapi.BulletedListItemBlock:
			sb.WriteString(indent + "- " + inline(b.BulletedListItem.RichText) + "\n")
			children, err := r.nested(ctx, blk, b.BulletedListItem.Children, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(children)
		case *notionapi.NumberedListItemBlock:
			ordinal++
			sb.WriteString(fmt.Sprintf("%s%d. %s\n", indent, ordinal, inline(b.NumberedListItem.RichText)))
			children, err := r.nested(ctx, blk, b.NumberedListItem.Children, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(children)
		case *notionapi.ToDoBlock:
			box := "[ ]"
			if b.ToDo.Checked {
				box = "[x]"
			}
			sb.WriteString(indent + "- " + box + " " + inline(b.ToDo.RichText) + "\n")
		case *notionapi.ToggleBlock:
			sb.WriteString(indent + "**" + inline(b.Toggle.RichText) + "**\n\n")
			children, err := r.nested(ctx, blk, b.Toggle.Children, depth)
			if err != nil {
				return "", err
			}
			sb.WriteString(children)
		case *notionapi.TableBlock:
			table, err := r.renderTable(ctx, b)
			if err != nil {
				return "", err
			}
			sb.WriteString(table)
		case *notionapi.ColumnListBlock:
			// Columns flatten top to bottom; markdown has no column layout.
			children, err := r.nested(ctx, blk, nil, depth)
			if err != nil {
				return "", err
			}
			sb.WriteString(children)
		case *notionapi.ColumnBlock:
			children, err := r.nested(ctx, blk, nil, depth)
			if err != nil {
				return "", err
			}
			sb.WriteString(children)
		case *notionapi.ChildPageBlock:
			// Child pages are synced as their own documents; leave a marker.
			sb.WriteString(indent + "**" + b.ChildPage.Title + "**\n\n")
		case *notionapi.DividerBlock:
			sb.WriteString(indent + "---\n\n")
		}
	}
	return sb.String(), nil
}

// renderTable turns a table block and its row children into a markdown table.
func (r *renderer) renderTable(ctx context.Context, b *notionapi.TableBlock) (string, error) {
	rowBlocks, err := r.children(ctx, b.GetID())
	if err != nil {
		return "", err
	}

	var rows [][]string
	for _, rb := range rowBlocks {
		row, ok := rb.(*notionapi.TableRowBlock)
		if !ok {
			continue
		}
		cells := make([]string, 0, len(row.TableRow.Cells))
		for _, cell := range row.TableRow.Cells {
			cells = append(cells, inline(cell))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return "", nil
	}

	width := b.Table.TableWidth
	if width == 0 {
		width = len(rows[0])
	}

	var sb strings.Builder
	header := rows[0]
	body := rows[1:]
	if !b.Table.HasColumnHeader {
		// No designated header row; emit an empty one so the table parses.
		header = make([]string, width)
		body = rows
	}
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, row := range body {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

// inline renders rich text spans with their annotations and links.
func inline(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		text := rt.PlainText
		if a := rt.Annotations; a != nil {
			if a.Code {
				text = "`" + text + "`"
			}
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
		}
		if rt.Href != "" {
			text = "[" + text + "](" + rt.Href + ")"
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// plainText joins rich text spans without any formatting, for code blocks.
func plainText(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}
