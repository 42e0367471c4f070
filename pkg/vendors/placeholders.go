package vendors

import (
	"fmt"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// placeholder reserves a vendor name whose renderer has not been written
// yet. It never reports ready, so routers configured with the vendor fail
// loudly instead of producing an empty config.
type placeholder struct {
	name string
}

func (p placeholder) Name() string { return p.name }

func (p placeholder) Initialize() error {
	return fmt.Errorf("vendor %q: %w", p.name, errdefs.ErrNotImplemented)
}

func (p placeholder) GenerateConfig(model.PeerInfo, model.TemplateVars) (string, error) {
	return "", fmt.Errorf("vendor %q: %w", p.name, errdefs.ErrNotImplemented)
}

func (p placeholder) GenerateFilterSet(string, model.FilterSet) (string, error) {
	return "", fmt.Errorf("vendor %q: %w", p.name, errdefs.ErrNotImplemented)
}

func (p placeholder) ValidateConfig(string) error {
	return fmt.Errorf("vendor %q: %w", p.name, errdefs.ErrNotImplemented)
}
