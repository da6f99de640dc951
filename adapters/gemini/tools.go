package gemini

import (
	"google.golang.org/genai"

	"github.com/satriahrh/wajah/domain/repositories"
)

// functionDeclarations converts the tool catalog into Gemini declarations
func functionDeclarations(tools []repositories.ToolDeclaration) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if len(tool.Parameters) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(tool.Parameters)),
			}
			for _, p := range tool.Parameters {
				schema.Properties[p.Name] = &genai.Schema{
					Type:        schemaType(p.Type),
					Description: p.Description,
					Enum:        p.Enum,
				}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return decls
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// functionResponses converts tool results, keeping each call's id
func functionResponses(results []repositories.ToolResult) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, len(results))
	for i, r := range results {
		response := map[string]any{"output": r.Output}
		if r.Error != "" {
			response = map[string]any{"error": r.Error}
		}
		responses[i] = &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: response,
		}
	}
	return responses
}
