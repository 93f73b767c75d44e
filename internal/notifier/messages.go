package notifier

import (
	"fmt"

	units "github.com/docker/go-units"
)

const (
	msgNewDocument     = "✅ Вышла новая редакция файла"
	msgCurrentDocument = "✅ Текущий PDF:"
	msgDocumentMissing = "PDF не найден."
	msgArticleMissing  = "Новостей не найдено."
	msgFetchFailed     = "Не удалось получить данные, попробуйте позже."
)

func newDocumentOversizeText(name, url string, size, limit int64) string {
	return fmt.Sprintf("✅ Вышла новая редакция файла %s\n%s, файл не отправлен.\n%s",
		name, oversizeText(size, limit), url)
}

func currentDocumentOversizeText(name, url string, size, limit int64) string {
	return fmt.Sprintf("Текущий PDF %s слишком большой для отправки\n%s.\n%s",
		name, oversizeText(size, limit), url)
}

// oversizeText describes a document over limit. A negative size means the
// download was cut off at limit.
func oversizeText(size, limit int64) string {
	if size < 0 {
		return fmt.Sprintf("Размер более %s", humanSize(limit))
	}
	return fmt.Sprintf("Размер %s превышает лимит %s", humanSize(size), humanSize(limit))
}

func newArticleText(title, url string) string {
	return fmt.Sprintf("📰 Новая новость:\n%s\n%s", title, url)
}

func currentArticleText(title, url string) string {
	return fmt.Sprintf("📰 Текущая новость:\n%s\n%s", title, url)
}

func pageChangedText(url string) string {
	return fmt.Sprintf("ℹ️ Обновления на странице 1:\n%s", url)
}

func humanSize(n int64) string {
	return units.BytesSize(float64(n))
}
