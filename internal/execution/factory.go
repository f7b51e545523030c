package execution

import (
	"fmt"

	"github.com/aiwargamer/sitroom/internal/projectconfig"
)

// New creates the generator selected by the provider configuration.
func New(cfg projectconfig.ProviderConfig) (Generator, error) {
	switch cfg.Name {
	case projectconfig.ProviderVertex:
		return NewVertexGenerator(VertexOptions{
			Project:  cfg.Project,
			Location: cfg.Location,
			ModelID:  cfg.Model,
		}), nil
	case projectconfig.ProviderCopilot:
		return NewCopilotGeneratorBuilder(cfg.Model, nil).Build(), nil
	case projectconfig.ProviderMock:
		return NewMockGenerator(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
