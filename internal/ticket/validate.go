package ticket

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rustlegion/ticket-bot/internal/errs"
	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/rustlegion/ticket-bot/internal/platform"
)

// SteamID: STEAM_0:1:12345678 либо 17-значный SteamID64.
var (
	steamIDRe   = regexp.MustCompile(`^STEAM_[0-5]:[01]:\d+$`)
	steamID64Re = regexp.MustCompile(`^\d{17}$`)
)

// ValidateSteamID проверяет оба принятых формата SteamID.
func ValidateSteamID(value string) bool {
	return steamIDRe.MatchString(value) || steamID64Re.MatchString(value)
}

// ValidateFields прогоняет значения формы по схеме типа тикета и возвращает
// упорядоченные пары подпись/значение для карточки тикета. Пустые
// необязательные поля опускаются.
func ValidateFields(spec model.TicketTypeSpec, values map[string]string) ([]platform.FieldValue, error) {
	out := make([]platform.FieldValue, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		v := strings.TrimSpace(values[f.Key])
		if v == "" {
			if f.Required {
				return nil, errs.Validation(f.Label, "поле не может быть пустым")
			}
			continue
		}
		if f.MaxLength > 0 && len([]rune(v)) > f.MaxLength {
			return nil, errs.Validation(f.Label, fmt.Sprintf("максимальная длина — %d символов", f.MaxLength))
		}
		if f.Kind == model.FieldSteamID && !ValidateSteamID(v) {
			return nil, errs.Validation(f.Label, "неверный формат SteamID")
		}
		out = append(out, platform.FieldValue{Label: f.Label, Value: v})
	}
	return out, nil
}
