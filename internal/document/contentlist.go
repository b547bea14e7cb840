// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// contentListSuffix names the document-structure service's output file.
const contentListSuffix = "_content_list.json"

// minParagraphLen drops headings and fragments from body text.
const minParagraphLen = 20

// contentItem is one entry of a content list.
type contentItem struct {
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	TextLevel     int             `json:"text_level"`
	PageIdx       int             `json:"page_idx"`
	ImgPath       string          `json:"img_path"`
	ImageCaption  json.RawMessage `json:"image_caption"`
	TableBody     string          `json:"table_body"`
	TableHTML     string          `json:"table_html"`
	TableCaption  json.RawMessage `json:"table_caption"`
	TableFootnote json.RawMessage `json:"table_footnote"`
}

// ContentListSource reads content lists already produced for each paper
// under dir/<paper id>/.
type ContentListSource struct {
	dir string
}

// NewContentListSource returns a source rooted at dir.
func NewContentListSource(dir string) *ContentListSource {
	return &ContentListSource{dir: dir}
}

// Load implements Source.
func (s *ContentListSource) Load(_ context.Context, paper types.Paper) (*types.Document, error) {
	return LoadDir(filepath.Join(s.dir, paper.ID), paper.ID)
}

// LoadDir finds the content list under dir and parses it. Image references
// are resolved relative to the content list's directory.
func LoadDir(dir, paperID string) (*types.Document, error) {
	path, err := FindContentList(dir)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening content list: %w", err)
	}
	defer f.Close()
	return ParseContentList(f, paperID, filepath.Dir(path))
}

// FindContentList returns the first content list under dir in lexical
// order, or ErrNoContent.
func FindContentList(dir string) (string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), contentListSuffix) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("searching %s: %w", dir, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%s: %w", dir, ErrNoContent)
	}
	sort.Strings(found)
	return found[0], nil
}

// ParseContentList decodes a content list into a document. Tables get a
// Markdown body and a caption-based kind; ids are numbered per paper in
// document order; pages are 1-based.
func ParseContentList(r io.Reader, paperID, baseDir string) (*types.Document, error) {
	var items []contentItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding content list: %w", err)
	}

	doc := &types.Document{PaperID: paperID}
	section := ""
	for _, it := range items {
		page := it.PageIdx + 1
		switch it.Type {
		case "table":
			caption := joinText(it.TableCaption)
			if fn := joinText(it.TableFootnote); fn != "" {
				caption += "\n\nFootnote: " + fn
			}
			body := it.TableBody
			if body == "" {
				body = it.TableHTML
			}
			md, err := HTMLTableToMarkdown(body)
			if err != nil {
				slog.Warn("table body not parseable as HTML", "paper", paperID, "error", err)
				md = body
			}
			doc.Tables = append(doc.Tables, types.Table{
				TableID: fmt.Sprintf("%s_table_%d", paperID, len(doc.Tables)+1),
				Caption: caption,
				Content: md,
				Page:    page,
				Kind:    ClassifyTable(caption),
			})
		case "image":
			ref := it.ImgPath
			if ref != "" && !filepath.IsAbs(ref) && baseDir != "" {
				ref = filepath.Join(baseDir, ref)
			}
			doc.Figures = append(doc.Figures, types.Figure{
				FigureID: fmt.Sprintf("%s_fig_%d", paperID, len(doc.Figures)+1),
				ImageRef: ref,
				Caption:  joinText(it.ImageCaption),
				Page:     page,
			})
		case "text":
			text := strings.TrimSpace(it.Text)
			if it.TextLevel > 0 {
				section = text
				continue
			}
			if len(text) < minParagraphLen {
				continue
			}
			doc.Paragraphs = append(doc.Paragraphs, types.Paragraph{
				ParaID:  fmt.Sprintf("%s_para_%d", paperID, len(doc.Paragraphs)+1),
				Text:    text,
				Section: section,
				Page:    page,
			})
		}
	}

	if len(doc.Tables) == 0 && len(doc.Figures) == 0 && len(doc.Paragraphs) == 0 {
		return nil, fmt.Errorf("paper %s: %w", paperID, ErrNoContent)
	}
	return doc, nil
}

// joinText decodes a caption given as a string or a list of strings.
func joinText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var parts []string
	if json.Unmarshal(raw, &parts) == nil {
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	return ""
}
