package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// TranscriptHandler раздаёт готовые транскрипты по имени файла.
type TranscriptHandler struct {
	dir string
}

func NewTranscriptHandler(dir string) *TranscriptHandler {
	return &TranscriptHandler{dir: dir}
}

// validFilename пропускает только плоское имя файла. Проверка обязательна:
// роутер отдаёт параметр уже с раскодированными %2F, и «каталога нет» — не
// то же самое, что «из каталога нельзя выйти».
func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return filepath.Base(name) == name
}

func (h *TranscriptHandler) Get(c *gin.Context) {
	name := c.Param("filename")
	if !validFilename(name) {
		c.Status(http.StatusNotFound)
		return
	}
	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(path)
}
