// Package transcript рендерит историю тикет-канала в самодостаточный
// HTML-документ, который потом раздаёт HTTP-сервер артефактов.
package transcript

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rustlegion/ticket-bot/internal/platform"
)

// pageSize — размер страницы при ленивой выборке истории.
const pageSize = 100

// Source выдаёт страницу сообщений строго старше afterID, от старых к новым.
// Пустая страница — конец истории.
type Source func(ctx context.Context, afterID string, limit int) ([]platform.Message, error)

// Participant — автор, встретившийся в истории.
type Participant struct {
	ID   string
	Name string
}

// Renderer пишет транскрипты в Dir. Файл ключуется именем канала, повторная
// генерация перезаписывает его на месте. Одноимённые каналы затирают друг
// друга — имена каналов в гильдии уникальны в каждый момент времени.
type Renderer struct {
	Dir string
}

func New(dir string) *Renderer {
	return &Renderer{Dir: dir}
}

// Filename — имя файла артефакта для канала.
func Filename(channelName string) string {
	return channelName + ".html"
}

// Render вычитывает историю канала постранично (от старых к новым), пишет
// документ и возвращает имя файла и список участников.
func (r *Renderer) Render(ctx context.Context, channelName string, source Source) (string, []Participant, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("transcripts dir: %w", err)
	}

	var b strings.Builder
	writeHeader(&b, channelName)

	seen := make(map[string]string)
	afterID := ""
	for {
		page, err := source(ctx, afterID, pageSize)
		if err != nil {
			return "", nil, fmt.Errorf("fetch history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			msg := &page[i]
			writeMessage(&b, msg)
			if _, ok := seen[msg.AuthorID]; !ok {
				seen[msg.AuthorID] = msg.AuthorName
			}
		}
		afterID = page[len(page)-1].ID
	}

	writeFooter(&b)

	filename := Filename(channelName)
	if err := os.WriteFile(filepath.Join(r.Dir, filename), []byte(b.String()), 0o644); err != nil {
		return "", nil, fmt.Errorf("write transcript: %w", err)
	}

	participants := make([]Participant, 0, len(seen))
	for id, name := range seen {
		participants = append(participants, Participant{ID: id, Name: name})
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })
	return filename, participants, nil
}

func writeHeader(b *strings.Builder, channelName string) {
	b.WriteString("<!DOCTYPE html>\n<html lang=\"ru\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(b, "<title>%s</title>\n", html.EscapeString(channelName))
	b.WriteString("<style>\n")
	b.WriteString("body{background:#313338;color:#dbdee1;font-family:sans-serif;margin:0;padding:16px}\n")
	b.WriteString(".message{display:flex;gap:12px;padding:8px 4px;border-bottom:1px solid #3f4147}\n")
	b.WriteString(".avatar{width:40px;height:40px;border-radius:50%}\n")
	b.WriteString(".author{font-weight:600;color:#f2f3f5}\n")
	b.WriteString(".time{color:#949ba4;font-size:12px;margin-left:8px}\n")
	b.WriteString(".content{white-space:pre-wrap}\n")
	b.WriteString(".embed{border-left:4px solid #5865f2;background:#2b2d31;padding:8px 12px;margin-top:4px;border-radius:4px}\n")
	b.WriteString(".embed-title{font-weight:600}\n")
	b.WriteString(".embed-field-name{font-weight:600;font-size:13px;margin-top:4px}\n")
	b.WriteString(".placeholder{color:#949ba4;font-style:italic}\n")
	b.WriteString("</style>\n</head>\n<body>\n")
	fmt.Fprintf(b, "<h2>%s</h2>\n", html.EscapeString(channelName))
}

func writeMessage(b *strings.Builder, msg *platform.Message) {
	fmt.Fprintf(b, "<div class=\"message\" data-message-id=\"%s\">\n", html.EscapeString(msg.ID))
	if msg.AuthorAvatar != "" {
		fmt.Fprintf(b, "<img class=\"avatar\" src=\"%s\" alt=\"\">\n", html.EscapeString(msg.AuthorAvatar))
	}
	b.WriteString("<div>\n")
	fmt.Fprintf(b, "<span class=\"author\" data-author-id=\"%s\">%s</span>",
		html.EscapeString(msg.AuthorID), html.EscapeString(msg.AuthorName))
	fmt.Fprintf(b, "<span class=\"time\">%s</span>\n", msg.Timestamp.UTC().Format(time.RFC3339))

	hasContent := false
	if msg.Content != "" {
		fmt.Fprintf(b, "<div class=\"content\">%s</div>\n", html.EscapeString(msg.Content))
		hasContent = true
	}
	for _, e := range msg.Embeds {
		b.WriteString("<div class=\"embed\">\n")
		if e.Title != "" {
			fmt.Fprintf(b, "<div class=\"embed-title\">%s</div>\n", html.EscapeString(e.Title))
		}
		if e.Description != "" {
			fmt.Fprintf(b, "<div>%s</div>\n", html.EscapeString(e.Description))
		}
		for _, f := range e.Fields {
			fmt.Fprintf(b, "<div class=\"embed-field-name\">%s</div>\n", html.EscapeString(f.Name))
			fmt.Fprintf(b, "<div>%s</div>\n", html.EscapeString(f.Value))
		}
		b.WriteString("</div>\n")
		hasContent = true
	}
	if !hasContent {
		b.WriteString("<div class=\"placeholder\">[вложение или системное сообщение]</div>\n")
	}
	b.WriteString("</div>\n</div>\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString("</body>\n</html>\n")
}
