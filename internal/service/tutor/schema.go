package tutor

import (
	"github.com/invopop/jsonschema"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

const paragraphSchemaName = "dutch_paragraph"

// paragraphSchema describes LearningParagraph for structured output.
// Every property is required and no additional properties are allowed.
func paragraphSchema() *provider.ResponseSchema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return &provider.ResponseSchema{
		Name:        paragraphSchemaName,
		Description: "Structured output for Dutch language learning content.",
		Schema:      r.Reflect(&domain.LearningParagraph{}),
	}
}
