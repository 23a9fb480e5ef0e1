package model

// FieldKind определяет, как валидируется значение поля формы.
type FieldKind int

const (
	// FieldText — произвольный текст, проверяется только на пустоту и длину.
	FieldText FieldKind = iota
	// FieldSteamID — SteamID в формате STEAM_X:Y:Z или 17-значный SteamID64.
	FieldSteamID
)

// FieldSpec — одно поле формы создания тикета.
type FieldSpec struct {
	Key         string
	Label       string
	Placeholder string
	Kind        FieldKind
	Required    bool
	MaxLength   int
	Paragraph   bool // многострочное поле (описание)
}

// TicketTypeSpec — вариант типа тикета: буква для номера, подпись в меню
// и схема полей формы. Единственный generic-путь создания параметризуется
// этим значением, без отдельного класса на каждый тип.
type TicketTypeSpec struct {
	Key         string
	Label       string
	Letter      string
	Description string
	Fields      []FieldSpec
}

const (
	TypeUnbanRequest = "unban_request"
	TypePlayerReport = "player_report"
	TypeAdminReport  = "admin_report"
	TypeTech         = "tech"
)

// MaxFreeText и MaxShortField — пределы длины полей формы.
const (
	MaxFreeText   = 1000
	MaxShortField = 64
)

var ticketTypes = map[string]TicketTypeSpec{
	TypeUnbanRequest: {
		Key:         TypeUnbanRequest,
		Label:       "Апелляция",
		Letter:      "A",
		Description: "Обжалование наказания",
		Fields: []FieldSpec{
			{Key: "steam_id", Label: "Ваш SteamID", Placeholder: "STEAM_0:1:12345678 или SteamID64", Kind: FieldSteamID, Required: true, MaxLength: MaxShortField},
			{Key: "ban_date", Label: "Дата и время бана", Placeholder: "Пример: 20.01.2026 ~ 18:30", Required: true, MaxLength: MaxShortField},
			{Key: "description", Label: "Причина апелляции", Required: true, MaxLength: MaxFreeText, Paragraph: true},
		},
	},
	TypePlayerReport: {
		Key:         TypePlayerReport,
		Label:       "Жалоба на игрока",
		Letter:      "P",
		Description: "Сообщить о нарушении игрока",
		Fields: []FieldSpec{
			{Key: "violator", Label: "SteamID или ник нарушителя", Placeholder: "SteamID64 или ник", Required: true, MaxLength: MaxShortField},
			{Key: "time", Label: "Время происшествия", Placeholder: "Пример: 20.01.2026 ~ 18:30", Required: true, MaxLength: MaxShortField},
			{Key: "description", Label: "Описание нарушения", Required: true, MaxLength: MaxFreeText, Paragraph: true},
			{Key: "proofs", Label: "Доказательства", Placeholder: "Ссылки на скриншоты / демо", Required: false, MaxLength: MaxFreeText, Paragraph: true},
		},
	},
	TypeAdminReport: {
		Key:         TypeAdminReport,
		Label:       "Жалоба на администратора",
		Letter:      "M",
		Description: "Сообщить о нарушении администратора",
		Fields: []FieldSpec{
			{Key: "steam_id", Label: "Ваш SteamID", Kind: FieldSteamID, Required: true, MaxLength: MaxShortField},
			{Key: "admin", Label: "Ник администратора", Required: true, MaxLength: MaxShortField},
			{Key: "time", Label: "Время происшествия", Placeholder: "Пример: 20.01.2026 ~ 18:30", Required: true, MaxLength: MaxShortField},
			{Key: "description", Label: "Описание ситуации", Required: true, MaxLength: MaxFreeText, Paragraph: true},
			{Key: "proofs", Label: "Доказательства", Required: false, MaxLength: MaxFreeText, Paragraph: true},
		},
	},
	TypeTech: {
		Key:         TypeTech,
		Label:       "Техническая помощь",
		Letter:      "T",
		Description: "Проблемы с игрой или сервером",
		Fields: []FieldSpec{
			{Key: "description", Label: "Опишите проблему", Required: true, MaxLength: MaxFreeText, Paragraph: true},
		},
	},
}

// typeOrder фиксирует порядок пунктов в меню выбора.
var typeOrder = []string{TypeUnbanRequest, TypePlayerReport, TypeAdminReport, TypeTech}

// TicketTypeByKey возвращает спецификацию типа тикета.
func TicketTypeByKey(key string) (TicketTypeSpec, bool) {
	spec, ok := ticketTypes[key]
	return spec, ok
}

// TicketTypeSpecs возвращает все типы в порядке отображения.
func TicketTypeSpecs() []TicketTypeSpec {
	out := make([]TicketTypeSpec, 0, len(typeOrder))
	for _, k := range typeOrder {
		out = append(out, ticketTypes[k])
	}
	return out
}
