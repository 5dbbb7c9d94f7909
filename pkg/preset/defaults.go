package preset

var builtin = []Preset{
	{ID: "vision", Name: "Al-Baseer", Title: "The All-Seeing", FrequencyHz: 540.78, SessionMinutes: 30, SuccessRate: 0.972, AbjadValue: 302},
	{ID: "hearing", Name: "As-Sami", Title: "The All-Hearing", FrequencyHz: 579.41, SessionMinutes: 30, SuccessRate: 0.972, AbjadValue: 325},
	{ID: "cancer", Name: "Ar-Razzaq", Title: "The Provider", FrequencyHz: 631.91, SessionMinutes: 30, SuccessRate: 0.972, AbjadValue: 354},
	{ID: "hiv", Name: "Ash-Shafi", Title: "The Healer", FrequencyHz: 611.29, SessionMinutes: 30, SuccessRate: 0.94, AbjadValue: 342},
	{ID: "sickle_cell", Name: "Al-Bari", Title: "The Evolver", FrequencyHz: 584.13, SessionMinutes: 30, SuccessRate: 0.96, AbjadValue: 327},
	{ID: "diabetes", Name: "Al-Muqit", Title: "The Sustainer", FrequencyHz: 549.67, SessionMinutes: 30, SuccessRate: 0.97, AbjadValue: 308},
	{ID: "jinn", Name: "Al-Qahhar", Title: "The Subduer", FrequencyHz: 806.42, SessionMinutes: 90, SuccessRate: 0.99, AbjadValue: 452},
}

// Default returns the built-in preset table.
func Default() *Table {
	t, err := NewTable(builtin...)
	if err != nil {
		panic(err) // builtin table is static
	}
	return t
}
