package parser

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xuri/excelize/v2"
)

type Parser interface {
	ParseDocument(filePath string) ([]models.Chunk, error)
}

type ParserConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultPageNumber   = 1
)

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxTextRun      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
)

// NewParser returns a parser using the chunking settings of cfg; nil or zero
// values fall back to 1000 characters with a 200 character overlap.
func NewParser(cfg *config.RAGConfig) *ParserConfig {
	p := &ParserConfig{
		ChunkSize:    defaultChunkSize,
		ChunkOverlap: defaultChunkOverlap,
	}
	if cfg != nil && cfg.ChunkSize > 0 {
		p.ChunkSize = cfg.ChunkSize
		p.ChunkOverlap = cfg.ChunkOverlap
	}
	return p
}

// ParseDocument extracts the text of filePath and splits it into overlapping chunks.
func (p *ParserConfig) ParseDocument(filePath string) ([]models.Chunk, error) {
	pages, err := LoadPages(filePath)
	if err != nil {
		return nil, err
	}
	return p.SplitPages(pages)
}

// LoadPages extracts text from the document, one entry per page or sheet.
func LoadPages(filePath string) ([]models.Page, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".txt", ".md":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parsePDF(filePath string) ([]models.Page, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	defer f.Close()

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, models.Page{Number: i, Text: pageText})
	}
	log.Debug().Str("file", filePath).Int("pages", numPages).Int("text_pages", len(pages)).Msg("Parsed pdf")
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx: %w", err)
	}
	defer r.Close()

	text := extractDocxText(r.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// DOCX has no page numbers
	return []models.Page{{Number: defaultPageNumber, Text: text}}, nil
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx: %w", err)
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		if len(rows) == 0 {
			continue
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Page{{Number: defaultPageNumber, Text: string(data)}}, nil
}

// extractDocxText turns document.xml into plain text, one line per paragraph.
func extractDocxText(xmlContent string) string {
	var text strings.Builder
	for _, paragraph := range docxParagraphEnd.Split(xmlContent, -1) {
		var line strings.Builder
		for _, m := range docxTextRun.FindAllStringSubmatch(paragraph, -1) {
			line.WriteString(html.UnescapeString(m[1]))
		}
		if strings.TrimSpace(line.String()) == "" {
			continue
		}
		text.WriteString(line.String())
		text.WriteString("\n")
	}
	return text.String()
}

// SplitPages splits each page with langchaingo's recursive character
// splitter. ChunkIDs restart at 1 on every page.
func (p *ParserConfig) SplitPages(pages []models.Page) ([]models.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.ChunkSize),
		textsplitter.WithChunkOverlap(p.ChunkOverlap),
	)

	var chunks []models.Chunk
	for _, page := range pages {
		texts, err := splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}

		cursor, id := 0, 0
		for _, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			offset := -1
			if idx := strings.Index(page.Text[cursor:], t); idx >= 0 {
				byteOffset := cursor + idx
				offset = utf8.RuneCountInString(page.Text[:byteOffset])
				cursor = byteOffset + 1
			}
			id++
			chunks = append(chunks, models.Chunk{
				Content:    t,
				PageNumber: page.Number,
				ChunkID:    id,
				Offset:     offset,
			})
		}
	}
	return chunks, nil
}
