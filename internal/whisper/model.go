package whisper

import (
	"fmt"
	"strings"
)

const DefaultModel = "base.en"

type Model struct {
	Name        string
	EnglishOnly bool
}

// models is ordered from fastest to most accurate.
var models = []Model{
	{Name: "tiny.en", EnglishOnly: true},
	{Name: "base.en", EnglishOnly: true},
	{Name: "small.en", EnglishOnly: true},
	{Name: "medium"},
	{Name: "large-v3"},
}

func ModelNames() []string {
	names := make([]string, 0, len(models))
	for _, model := range models {
		names = append(names, model.Name)
	}
	return names
}

func LookupModel(name string) (Model, bool) {
	for _, model := range models {
		if model.Name == name {
			return model, true
		}
	}
	return Model{}, false
}

// ResolveModel maps an empty reference to DefaultModel and rejects names
// outside the supported set.
func ResolveModel(modelRef string) (Model, error) {
	modelRef = strings.TrimSpace(modelRef)
	if modelRef == "" {
		modelRef = DefaultModel
	}

	model, ok := LookupModel(modelRef)
	if !ok {
		return Model{}, fmt.Errorf("unknown model %q (known models: %s)", modelRef, strings.Join(ModelNames(), ", "))
	}
	return model, nil
}
