package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autonet/pkg/model"
	"autonet/pkg/vendors"
)

type passingSchema struct{}

func (passingSchema) Validate() model.ValidationResult {
	return model.ValidationResult{Stage: model.StageSchema, Passed: true}
}

type failingSchema struct{}

func (failingSchema) Validate() model.ValidationResult {
	return model.ValidationResult{Stage: model.StageSchema, Passed: false, Errors: []string{"builddir missing"}}
}

// okPlugin accepts every staged file without shelling out.
type okPlugin struct {
	name    string
	checked []string
	fail    bool
}

func (p *okPlugin) Name() string       { return p.name }
func (p *okPlugin) Initialize() error  { return nil }
func (p *okPlugin) GenerateConfig(model.PeerInfo, model.TemplateVars) (string, error) {
	return "", nil
}
func (p *okPlugin) GenerateFilterSet(string, model.FilterSet) (string, error) { return "", nil }
func (p *okPlugin) ValidateConfig(path string) error {
	p.checked = append(p.checked, path)
	if p.fail {
		return fmt.Errorf("syntax error near line 3")
	}
	return nil
}

func (p *okPlugin) Layout() vendors.TreeLayout {
	return vendors.TreeLayout{
		EntryFile: "bird.conf",
		Essential: []string{
			"header-ipv4.conf",
			"header-ipv6.conf",
			"interfaces-ipv4.conf",
			"interfaces-ipv6.conf",
			"peerings/peers.ipv4.conf",
			"peerings/peers.ipv6.conf",
		},
	}
}

func (p *okPlugin) Skeleton(model.Router, []string, model.TemplateVars) map[string]string {
	return map[string]string{}
}

func testRegistry(p vendors.Plugin) *vendors.Registry {
	r := vendors.NewRegistry(zap.NewNop())
	r.Register(p)
	r.Initialize()
	return r
}

func completeConfig(router string) *model.RouterConfig {
	layout := (&okPlugin{}).Layout()
	files := map[string]string{layout.EntryFile: "include \"*.conf\";\n"}
	for _, name := range layout.Essential {
		files[name] = "# generated\n"
	}
	files["header-ipv4.conf"] = "router id 192.0.2.1;\n"
	files["interfaces-ipv4.conf"] = "protocol device {}\n"
	return &model.RouterConfig{RouterID: router, Vendor: "bird", Files: files}
}

func TestValidateAllPasses(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	results, ok := v.ValidateAll(passingSchema{}, []*model.RouterConfig{rc}, t.TempDir())
	assert.True(t, ok)
	assert.Equal(t, model.ValidationPassed, rc.ValidationState)
	assert.Len(t, results, 4) // schema + three per-router stages
}

func TestSchemaFailureAbortsEverything(t *testing.T) {
	plugin := &okPlugin{name: "bird"}
	v := New(testRegistry(plugin), zap.NewNop())
	rc := completeConfig("dc5-1")
	results, ok := v.ValidateAll(failingSchema{}, []*model.RouterConfig{rc}, t.TempDir())
	assert.False(t, ok)
	assert.Len(t, results, 1, "per-router stages must not run")
	assert.Empty(t, plugin.checked, "syntax checker must not be invoked")
	assert.Equal(t, model.ValidationFailed, rc.ValidationState)
}

func TestCompletenessMissingFileIsError(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	delete(rc.Files, "peerings/peers.ipv6.conf")
	results := v.ValidateRouter(rc, t.TempDir())
	require.Equal(t, model.StageCompleteness, results[0].Stage)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Errors[0], "peerings/peers.ipv6.conf")
}

func TestCompletenessEmptyFileIsWarning(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	rc.Files["peerings/peers.ipv6.conf"] = "\n"
	results := v.ValidateRouter(rc, t.TempDir())
	assert.True(t, results[0].Passed)
	require.Len(t, results[0].Warnings, 1)
	assert.Contains(t, results[0].Warnings[0], "empty")
}

func TestSyntaxFailureIsIsolatedPerRouter(t *testing.T) {
	// Two routers on different vendors; only the failing vendor's router
	// must be marked failed.
	bad := &okPlugin{name: "bird", fail: true}
	good := &okPlugin{name: "frr"}
	r := vendors.NewRegistry(zap.NewNop())
	r.Register(bad)
	r.Register(good)
	r.Initialize()
	v := New(r, zap.NewNop())

	rc1 := completeConfig("dc5-1")
	rc2 := completeConfig("dc5-2")
	rc2.Vendor = "frr"
	_, ok := v.ValidateAll(passingSchema{}, []*model.RouterConfig{rc1, rc2}, t.TempDir())
	assert.False(t, ok)
	assert.Equal(t, model.ValidationFailed, rc1.ValidationState)
	assert.Equal(t, model.ValidationPassed, rc2.ValidationState)
}

func TestSyntaxUnknownVendorFails(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	rc.Vendor = "cisco-xr"
	results := v.ValidateRouter(rc, t.TempDir())
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
}

func TestRenderOnlyVendorFailsValidation(t *testing.T) {
	// frr renders sessions but defines no tree layout, so a staged config
	// claiming that vendor cannot pass the completeness stage.
	r := vendors.NewRegistry(zap.NewNop())
	r.Register(vendors.NewFRR())
	v := New(r, zap.NewNop())
	rc := completeConfig("dc5-1")
	rc.Vendor = "frr"
	results := v.ValidateRouter(rc, t.TempDir())
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Errors[0], "tree layout")
}

func TestSemanticsMissingRouterID(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	rc.Files["header-ipv4.conf"] = "# no id here\n"
	results := v.ValidateRouter(rc, t.TempDir())
	sem := results[2]
	require.Equal(t, model.StageSemantics, sem.Stage)
	assert.False(t, sem.Passed)
	assert.Contains(t, sem.Errors[0], "router id")
}

func TestSemanticsEmptyPrefixSetWarns(t *testing.T) {
	v := New(testRegistry(&okPlugin{name: "bird"}), zap.NewNop())
	rc := completeConfig("dc5-1")
	rc.Files["filters/AS64512-ipv6.conf"] = "define PFX_64512_IPV6 = [ ];\n"
	results := v.ValidateRouter(rc, t.TempDir())
	sem := results[2]
	assert.True(t, sem.Passed)
	require.Len(t, sem.Warnings, 1)
	assert.Contains(t, sem.Warnings[0], "AS64512-ipv6")
}
