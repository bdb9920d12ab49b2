package dispatch

import (
	"context"
	"fmt"
	"strings"

	"eduattend/internal/api"
	"eduattend/internal/config"

	"github.com/tmc/langchaingo/prompts"
)

// builtin is the default suggested-question catalog. Templates use Go
// template syntax over the field value keys.
var builtin = []config.QuestionConfig{
	{Label: "Absen Hari Ini", Icon: "📋", Text: "Siapa saja yang tidak hadir hari ini?"},
	{
		Label:    "Rekap Kelas",
		Icon:     "📊",
		Title:    "Rekap Absensi Kelas",
		Template: "Tampilkan rekap absensi kelas {{.kelas}} dari tanggal {{.periode_start}} sampai {{.periode_end}}",
		Fields: []config.FieldConfig{
			{Key: "kelas", Label: "Kelas", Type: "kelas", Required: true},
			{Key: "periode", Label: "Periode", Type: "date_range", Required: true},
		},
	},
	{Label: "Siswa Alfa", Icon: "🚫", Text: "Siapa saja yang alfa hari ini?"},
	{
		Label:    "Absen per Kelas",
		Icon:     "🏫",
		Title:    "Ketidakhadiran Kelas",
		Template: "Siapa saja siswa kelas {{.kelas}} yang {{.status}} pada tanggal {{.tanggal}}?",
		Fields: []config.FieldConfig{
			{Key: "kelas", Label: "Kelas", Type: "kelas", Required: true},
			{Key: "tanggal", Label: "Tanggal", Type: "date", Required: true, DefaultToday: true},
			{
				Key: "status", Label: "Status", Type: "select", Required: true, Default: "tidak hadir",
				Options: []config.OptionConfig{
					{Value: "tidak hadir", Label: "Semua ketidakhadiran"},
					{Value: "alfa", Label: "Alfa"},
					{Value: "izin", Label: "Izin"},
					{Value: "sakit", Label: "Sakit"},
				},
			},
		},
	},
	{Label: "Persentase Kehadiran", Icon: "📈", Text: "Berapa persentase kehadiran bulan ini?"},
	{Label: "Top Siswa Bolos", Icon: "🏆", Text: "Siapa 5 siswa paling sering alfa?"},
	{
		Label:    "Riwayat Siswa",
		Icon:     "👤",
		Title:    "Riwayat Absensi Siswa",
		Template: "Tampilkan riwayat absensi siswa bernama {{.nama}}{{if .kelas}} dari kelas {{.kelas}}{{end}} bulan ini",
		Fields: []config.FieldConfig{
			{Key: "nama", Label: "Nama Siswa", Type: "text", Required: true, Placeholder: "contoh: Budi Santoso"},
			{Key: "kelas", Label: "Kelas (opsional)", Type: "kelas"},
		},
	},
	{
		Label:    "Surat Peringatan",
		Icon:     "✉️",
		Title:    "Buat Surat Peringatan",
		Template: "Buatkan surat peringatan untuk {{.nama}}",
		Fields: []config.FieldConfig{
			{Key: "nama", Label: "Nama Siswa", Type: "text", Required: true, Placeholder: "contoh: Budi"},
		},
	},
	{Label: "Analisis Anomali", Icon: "🔍", Text: "Cek anomali absensi hari ini"},
}

// Builtin returns the default catalog.
func Builtin() []Question {
	qs, err := FromConfig(builtin)
	if err != nil {
		panic(fmt.Sprintf("dispatch: builtin catalog is invalid: %v", err))
	}
	return qs
}

// Catalog returns the builtin questions followed by the configured ones.
func Catalog(extra []config.QuestionConfig) ([]Question, error) {
	qs, err := FromConfig(extra)
	if err != nil {
		return nil, err
	}
	return append(Builtin(), qs...), nil
}

// FromConfig converts configured entries into questions. An entry with text
// becomes Direct; an entry with a template becomes Templated.
func FromConfig(entries []config.QuestionConfig) ([]Question, error) {
	out := make([]Question, 0, len(entries))
	for i, e := range entries {
		q, err := questionFromConfig(e)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func questionFromConfig(e config.QuestionConfig) (Question, error) {
	hasText, hasTemplate := e.Text != "", e.Template != ""
	switch {
	case hasText && hasTemplate:
		return nil, fmt.Errorf("%w: %q sets both text and template", ErrInvalidQuestion, e.Label)
	case hasText:
		return NewDirect(e.Label, e.Icon, e.Text)
	case !hasTemplate:
		return nil, fmt.Errorf("%w: %q sets neither text nor template", ErrInvalidQuestion, e.Label)
	}

	spec := ParamSpec{Title: e.Title}
	for _, fc := range e.Fields {
		ft, err := ParseFieldType(fc.Type)
		if err != nil {
			return nil, err
		}
		field := Field{
			Key:          fc.Key,
			Label:        fc.Label,
			Type:         ft,
			Required:     fc.Required,
			Default:      fc.Default,
			DefaultToday: fc.DefaultToday,
			Placeholder:  fc.Placeholder,
		}
		for _, oc := range fc.Options {
			label := oc.Label
			if label == "" {
				label = oc.Value
			}
			field.Options = append(field.Options, Choice{Value: oc.Value, Label: label})
		}
		spec.Fields = append(spec.Fields, field)
	}

	tmpl, err := PromptTemplate(e.Template, spec.ValueKeys())
	if err != nil {
		return nil, fmt.Errorf("%q: %w", e.Label, err)
	}
	return NewTemplated(e.Label, e.Icon, spec, tmpl)
}

// PromptTemplate compiles a Go-template message over vars. Every var is
// always bound, to "" when not collected, and runs of whitespace left by
// empty optional values are collapsed.
func PromptTemplate(text string, vars []string) (Template, error) {
	pt := prompts.NewPromptTemplate(text, vars)

	blank := make(map[string]any, len(vars))
	for _, v := range vars {
		blank[v] = ""
	}
	if _, err := pt.Format(blank); err != nil {
		return nil, fmt.Errorf("%w: bad template: %v", ErrInvalidQuestion, err)
	}

	return func(values map[string]string) (string, error) {
		in := make(map[string]any, len(vars))
		for _, v := range vars {
			in[v] = values[v]
		}
		out, err := pt.Format(in)
		if err != nil {
			return "", err
		}
		return strings.Join(strings.Fields(out), " "), nil
	}, nil
}

// Roster lists the classes of the school.
type Roster interface {
	ListClasses(ctx context.Context) ([]api.Option, error)
}

// RosterSource exposes the class roster as remote-field choices. The value
// sent is the class name, as the agent expects.
func RosterSource(r Roster) OptionSource {
	return OptionSourceFunc(func(ctx context.Context) ([]Choice, error) {
		classes, err := r.ListClasses(ctx)
		if err != nil {
			return nil, err
		}
		choices := make([]Choice, 0, len(classes))
		for _, c := range classes {
			choices = append(choices, Choice{Value: c.Name, Label: c.Label()})
		}
		return choices, nil
	})
}
