// Package validate runs the staged configuration through its pre-deployment
// checks. Stages run in a fixed order; the schema stage is run-wide and
// aborts everything, the later stages are independent per router so one bad
// router never blocks validation of the others.
package validate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"autonet/pkg/model"
	"autonet/pkg/vendors"
)

type Validator struct {
	Registry *vendors.Registry
	log      *zap.Logger
}

func New(registry *vendors.Registry, log *zap.Logger) *Validator {
	return &Validator{Registry: registry, log: log}
}

// SchemaValidator is the run-wide stage-1 check, satisfied by the
// configuration layer.
type SchemaValidator interface {
	Validate() model.ValidationResult
}

// ValidateAll runs every stage. When the schema stage fails the per-router
// stages are skipped entirely and ok is false. stageDir is the on-disk root
// holding one directory per router, used by the vendor syntax checkers.
func (v *Validator) ValidateAll(schema SchemaValidator, configs []*model.RouterConfig, stageDir string) (results []model.ValidationResult, ok bool) {
	sr := schema.Validate()
	results = append(results, sr)
	if !sr.Passed {
		v.log.Error("configuration schema invalid", zap.Strings("errors", sr.Errors))
		for _, rc := range configs {
			rc.ValidationState = model.ValidationFailed
		}
		return results, false
	}

	ok = true
	for _, rc := range configs {
		routerResults := v.ValidateRouter(rc, stageDir)
		results = append(results, routerResults...)
		passed := true
		for _, r := range routerResults {
			if !r.Passed {
				passed = false
			}
		}
		if passed {
			rc.ValidationState = model.ValidationPassed
		} else {
			rc.ValidationState = model.ValidationFailed
			ok = false
		}
	}
	return results, ok
}

// ValidateRouter runs stages 2-4 for a single router. The vendor plugin
// supplies the tree layout the completeness and syntax stages check against;
// a router whose vendor cannot be resolved or defines no layout fails with
// a single result.
func (v *Validator) ValidateRouter(rc *model.RouterConfig, stageDir string) []model.ValidationResult {
	plugin, err := v.Registry.Resolve(rc.Vendor)
	if err != nil {
		return []model.ValidationResult{{
			Stage: model.StageSyntax, Router: rc.RouterID,
			Errors: []string{err.Error()},
		}}
	}
	tr, ok := plugin.(vendors.TreeRenderer)
	if !ok {
		return []model.ValidationResult{{
			Stage: model.StageCompleteness, Router: rc.RouterID,
			Errors: []string{fmt.Sprintf("vendor %q defines no tree layout", rc.Vendor)},
		}}
	}
	layout := tr.Layout()

	results := []model.ValidationResult{
		v.completeness(rc, layout),
		v.syntax(rc, plugin, layout, stageDir),
		v.semantics(rc, layout),
	}
	for _, r := range results {
		if !r.Passed {
			v.log.Warn("validation stage failed",
				zap.String("router", rc.RouterID),
				zap.String("stage", r.Stage),
				zap.Strings("errors", r.Errors))
		}
	}
	return results
}

// completeness checks the vendor layout's files. A missing file is a
// validation error; a present but empty file only warns, since an exchange
// with no sessions legitimately produces an empty peerings file.
func (v *Validator) completeness(rc *model.RouterConfig, layout vendors.TreeLayout) model.ValidationResult {
	res := model.ValidationResult{Stage: model.StageCompleteness, Router: rc.RouterID, Passed: true}
	for _, name := range layout.Essential {
		content, present := rc.Files[name]
		switch {
		case !present:
			res.Errors = append(res.Errors, fmt.Sprintf("missing essential file %s", name))
			res.Passed = false
		case strings.TrimSpace(content) == "":
			res.Warnings = append(res.Warnings, fmt.Sprintf("essential file %s is empty", name))
		}
	}
	if _, ok := rc.Files[layout.EntryFile]; !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("missing entry file %s", layout.EntryFile))
		res.Passed = false
	}
	return res
}

func (v *Validator) syntax(rc *model.RouterConfig, plugin vendors.Plugin, layout vendors.TreeLayout, stageDir string) model.ValidationResult {
	res := model.ValidationResult{Stage: model.StageSyntax, Router: rc.RouterID, Passed: true}
	entry := filepath.Join(stageDir, rc.RouterID, layout.EntryFile)
	if err := plugin.ValidateConfig(entry); err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.Passed = false
	}
	return res
}

func (v *Validator) semantics(rc *model.RouterConfig, layout vendors.TreeLayout) model.ValidationResult {
	res := model.ValidationResult{Stage: model.StageSemantics, Router: rc.RouterID, Passed: true}
	inLayout := func(name string) bool {
		for _, n := range layout.Essential {
			if n == name {
				return true
			}
		}
		return false
	}

	if inLayout("header-ipv4.conf") {
		header := rc.Files["header-ipv4.conf"] + rc.Files["header-ipv6.conf"]
		if !strings.Contains(header, "router id") {
			res.Errors = append(res.Errors, "no router id declared in headers")
			res.Passed = false
		}
	}
	if inLayout("interfaces-ipv4.conf") {
		interfaces := rc.Files["interfaces-ipv4.conf"] + rc.Files["interfaces-ipv6.conf"]
		if !strings.Contains(interfaces, "protocol device") {
			res.Errors = append(res.Errors, "no device protocol declared")
			res.Passed = false
		}
	}

	// Empty prefix sets are legal (they reject everything) but usually mean
	// an IRR chain came back empty, so surface them.
	var filterFiles []string
	for name := range rc.Files {
		if strings.HasPrefix(name, "filters/") {
			filterFiles = append(filterFiles, name)
		}
	}
	sort.Strings(filterFiles)
	for _, name := range filterFiles {
		if strings.Contains(rc.Files[name], "= [ ];") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s defines an empty prefix set", name))
		}
	}
	return res
}
