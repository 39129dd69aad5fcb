package assembler

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/permissions"
	"github.com/geoserve/confgen/pkg/projects"
	"github.com/geoserve/confgen/pkg/resource"
	"github.com/geoserve/confgen/pkg/tenant"
)

// PermissionsFile is the file name of the tenant permissions document.
const PermissionsFile = "permissions.json"

// ConfigFileName returns the output file name for a service config.
func ConfigFileName(service string) string {
	return service + "Config.json"
}

// Violation is one schema validation failure, referencing the offending
// JSON path.
type Violation struct {
	Path    string
	Message string
}

// Validator checks an assembled document against the service's registered
// schema. Implementations are pure: document in, violations out.
type Validator interface {
	Validate(service string, document []byte) ([]Violation, error)
}

// Inputs are the collaborator-supplied inputs of one assembly run.
type Inputs struct {
	Tenant   string
	Config   *tenant.Config
	Policy   permissions.Policy
	Forest   *resource.Forest
	Resolved *permissions.ResolvedSet
	Users    []permissions.User
	Groups   []permissions.Group
	Projects projects.Provider

	// Metrics counts schema violations per service. May be nil.
	Metrics *observability.Metrics
}

// Assembler builds service config documents and the permissions document.
type Assembler struct {
	in        Inputs
	validator Validator
	report    permissions.Reporter

	// per-service override forests, built by ApplyOverrides
	overrides map[string]*resource.Forest
}

// New creates an assembler. validator may be nil to skip schema validation
// regardless of the tenant setting.
func New(in Inputs, validator Validator, report permissions.Reporter) *Assembler {
	return &Assembler{
		in:        in,
		validator: validator,
		report:    report,
		overrides: make(map[string]*resource.Forest),
	}
}

func (a *Assembler) countViolations(service string, n int) {
	if a.in.Metrics == nil {
		return
	}
	a.in.Metrics.SchemaViolationsTotal.WithLabelValues(a.in.Tenant, service).Add(float64(n))
}

// resourceEntry is a resource listing item in a service config document.
type resourceEntry struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// ApplyOverrides resolves tenant-declared resource/permission blocks and
// replaces the store-derived resolution for the affected services' resource
// types. Declared records fully replace the store for those types; the
// resolver is run against the declared records only, with the same policy.
func (a *Assembler) ApplyOverrides(ctx context.Context) error {
	for i := range a.in.Config.Services {
		spec := &a.in.Config.Services[i]
		if !spec.HasOverrides() {
			continue
		}
		types := ResourceTypesForService(spec.Name)
		if types == nil {
			a.report.Warnf("Service '%s' is config-only, ignoring declared resources", spec.Name)
			continue
		}

		records, err := declaredRecords(spec.Resources)
		if err != nil {
			return fmt.Errorf("service %q overrides: %w", spec.Name, err)
		}
		forest, err := resource.BuildForest(a.in.Forest.Registry(), records)
		if err != nil {
			return fmt.Errorf("service %q overrides: %w", spec.Name, err)
		}

		grants := make([]permissions.Grant, 0, len(spec.Permissions))
		for _, g := range spec.Permissions {
			grants = append(grants, permissions.Grant{
				Role:         g.Role,
				ResourceType: g.Type,
				ResourceName: g.Name,
			})
		}

		resolver, err := permissions.NewResolver(forest, a.in.Policy, grants, a.in.Resolved.RoleNames(), a.report)
		if err != nil {
			return fmt.Errorf("service %q overrides: %w", spec.Name, err)
		}
		overrideSet, err := resolver.Resolve(ctx)
		if err != nil {
			return err
		}
		if err := a.in.Resolved.ReplaceTypes(overrideSet, types); err != nil {
			return fmt.Errorf("service %q overrides: %w", spec.Name, err)
		}
		a.overrides[spec.Name] = forest
		a.report.Infof("Applied declared resources for service '%s'", spec.Name)
	}
	return nil
}

// declaredRecords converts declared resources to records with synthetic
// IDs, resolving parent references by name within the declared set.
func declaredRecords(declared []tenant.DeclaredResource) ([]resource.Record, error) {
	byName := make(map[string]int64, len(declared))
	records := make([]resource.Record, 0, len(declared))
	for i, d := range declared {
		id := int64(i + 1)
		records = append(records, resource.Record{ID: id, Type: d.Type, Name: d.Name})
		if _, exists := byName[d.Name]; !exists {
			byName[d.Name] = id
		}
	}
	for i, d := range declared {
		if d.Parent == "" {
			continue
		}
		parentID, ok := byName[d.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: declared resource %q references unknown parent %q",
				resource.ErrMalformedResourceGraph, d.Name, d.Parent)
		}
		p := parentID
		records[i].Parent = &p
	}
	return records, nil
}

type stagedDocument struct {
	service  string
	filename string
	body     interface{}
	data     []byte
}

// AssembleAll builds every declared service document, validates them if
// enabled and stages them. In strict mode (ignore_errors disabled) the
// first failure aborts; in tolerant mode failing documents are omitted and
// logged. The context is checked between services so a run can be
// cancelled cooperatively.
func (a *Assembler) AssembleAll(ctx context.Context, staging *Staging) error {
	var docs []*stagedDocument
	for i := range a.in.Config.Services {
		if err := ctx.Err(); err != nil {
			return err
		}
		spec := &a.in.Config.Services[i]
		body, err := a.buildDocument(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.report.Errorf("Could not assemble '%s' service config: %s", spec.Name, err)
			if !a.in.Policy.IgnoreErrors {
				return fmt.Errorf("failed to assemble service %q: %w", spec.Name, err)
			}
			continue
		}
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to serialize service %q: %w", spec.Name, err)
		}
		docs = append(docs, &stagedDocument{
			service:  spec.Name,
			filename: ConfigFileName(spec.Name),
			body:     body,
			data:     data,
		})
	}

	valid, err := a.validateAll(ctx, docs)
	if err != nil {
		return err
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !valid[i] {
			continue
		}
		a.report.Infof("Writing '%s' service config file", doc.filename)
		if err := staging.WriteDocument(doc.filename, doc.body); err != nil {
			return err
		}
	}
	return nil
}

// validateAll runs schema validation for all documents concurrently and
// reports violations. It returns which documents may be staged; in strict
// mode any violation is an error.
func (a *Assembler) validateAll(ctx context.Context, docs []*stagedDocument) ([]bool, error) {
	valid := make([]bool, len(docs))
	for i := range valid {
		valid[i] = true
	}
	if a.validator == nil || !a.in.Config.Generator.ValidateSchema {
		return valid, nil
	}

	violations := make([][]Violation, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := a.validator.Validate(doc.service, doc.data)
			if err != nil {
				return fmt.Errorf("schema validation of service %q failed: %w", doc.service, err)
			}
			violations[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if len(violations[i]) == 0 {
			a.report.Infof("'%s' service config validates against schema", doc.service)
			continue
		}
		valid[i] = false
		a.countViolations(doc.service, len(violations[i]))
		for _, v := range violations[i] {
			a.report.Errorf("Validation error in '%s' service config at %s: %s",
				doc.service, v.Path, v.Message)
		}
		if !a.in.Policy.IgnoreErrors {
			return nil, fmt.Errorf("service %q config failed schema validation", doc.service)
		}
		a.report.Warnf("Omitting '%s' service config from output", doc.service)
	}
	return valid, nil
}

// buildDocument constructs one service config document: the opaque tenant
// config block plus the spliced resource data for the service's types.
func (a *Assembler) buildDocument(ctx context.Context, spec *tenant.ServiceSpec) (map[string]interface{}, error) {
	cfg := spec.Config
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	doc := map[string]interface{}{
		"service": spec.Name,
		"config":  cfg,
	}

	types := ResourceTypesForService(spec.Name)
	if types == nil {
		// config-only service
		return doc, nil
	}

	res := map[string]interface{}{}
	switch spec.Name {
	case ServiceMapViewer:
		themes, err := a.themesTree(ctx)
		if err != nil {
			return nil, err
		}
		res["qwc2_themes"] = themes
		res[resource.TypeViewerTask] = a.listing(spec.Name, resource.TypeViewerTask)
	case ServiceData:
		datasets, err := a.datasets(ctx)
		if err != nil {
			return nil, err
		}
		res["datasets"] = datasets
		res[resource.TypeDataResource] = a.listing(spec.Name, resource.TypeDataResource)
	default:
		for _, typeName := range types {
			res[typeName] = a.listing(spec.Name, typeName)
		}
	}
	doc["resources"] = res
	return doc, nil
}

// listing returns the resource entries of a type in output order, using
// the service's declared override forest when one was applied.
func (a *Assembler) listing(service, typeName string) []resourceEntry {
	forest := a.in.Forest
	if ov, ok := a.overrides[service]; ok {
		forest = ov
	}
	nodes := forest.OfType(typeName)
	entries := make([]resourceEntry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, resourceEntry{Name: n.Name, Parent: n.ParentName()})
	}
	return entries
}

type themeAttribute struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	DataType string `json:"data_type,omitempty"`
}

type themeLayer struct {
	Name       string           `json:"name"`
	Title      string           `json:"title,omitempty"`
	Queryable  bool             `json:"queryable,omitempty"`
	Attributes []themeAttribute `json:"attributes,omitempty"`
	Sublayers  []themeLayer     `json:"sublayers,omitempty"`
}

type themeItem struct {
	Name           string       `json:"name"`
	Title          string       `json:"title,omitempty"`
	CRS            string       `json:"crs,omitempty"`
	Extent         []float64    `json:"extent,omitempty"`
	Layers         []themeLayer `json:"layers"`
	PrintTemplates []string     `json:"print_templates,omitempty"`
}

// themesTree derives the viewer theme tree from project metadata.
func (a *Assembler) themesTree(ctx context.Context) (map[string]interface{}, error) {
	if a.in.Projects == nil {
		return nil, fmt.Errorf("no project metadata provider configured")
	}
	themes, err := a.in.Projects.Themes(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]themeItem, 0, len(themes))
	for _, theme := range themes {
		project, err := a.in.Projects.ProjectMetadata(ctx, theme)
		if err != nil {
			return nil, err
		}
		items = append(items, themeItem{
			Name:           project.Name,
			Title:          project.Title,
			CRS:            project.CRS,
			Extent:         project.Extent,
			Layers:         convertLayers(project.Layers),
			PrintTemplates: project.PrintTemplates,
		})
	}
	return map[string]interface{}{
		"themes": map[string]interface{}{"items": items},
	}, nil
}

func convertLayers(layers []projects.Layer) []themeLayer {
	out := make([]themeLayer, 0, len(layers))
	for _, l := range layers {
		attrs := make([]themeAttribute, 0, len(l.Attributes))
		for _, attr := range l.Attributes {
			attrs = append(attrs, themeAttribute{
				Name:     attr.Name,
				Alias:    attr.Alias,
				DataType: attr.DataType,
			})
		}
		out = append(out, themeLayer{
			Name:       l.Name,
			Title:      l.Title,
			Queryable:  l.Queryable,
			Attributes: attrs,
			Sublayers:  convertLayers(l.Sublayers),
		})
	}
	return out
}

type datasetField struct {
	Name     string `json:"name"`
	DataType string `json:"data_type,omitempty"`
}

type dataset struct {
	Name       string         `json:"name"`
	DBURL      string         `json:"db_url"`
	Schema     string         `json:"schema,omitempty"`
	TableName  string         `json:"table_name"`
	PrimaryKey string         `json:"primary_key,omitempty"`
	Geometry   string         `json:"geometry_column,omitempty"`
	Fields     []datasetField `json:"fields"`
	ReadOnly   bool           `json:"read_only"`
}

// datasets derives editable dataset definitions from project metadata.
// force_readonly_datasets marks every dataset read-only regardless of its
// source flag.
func (a *Assembler) datasets(ctx context.Context) ([]dataset, error) {
	if a.in.Projects == nil {
		return nil, fmt.Errorf("no project metadata provider configured")
	}
	themes, err := a.in.Projects.Themes(ctx)
	if err != nil {
		return nil, err
	}

	var datasets []dataset
	for _, theme := range themes {
		project, err := a.in.Projects.ProjectMetadata(ctx, theme)
		if err != nil {
			return nil, err
		}
		project.WalkLayers(func(l *projects.Layer) {
			if l.DataSource == nil {
				return
			}
			ds := l.DataSource
			fields := make([]datasetField, 0, len(l.Attributes))
			for _, attr := range l.Attributes {
				fields = append(fields, datasetField{Name: attr.Name, DataType: attr.DataType})
			}
			datasets = append(datasets, dataset{
				Name:       project.Name + "." + l.Name,
				DBURL:      ds.Database,
				Schema:     ds.Schema,
				TableName:  ds.Table,
				PrimaryKey: ds.PrimaryKey,
				Geometry:   ds.Geometry,
				Fields:     fields,
				ReadOnly:   ds.ReadOnly || a.in.Policy.ForceReadOnlyDatasets,
			})
		})
	}
	if datasets == nil {
		datasets = []dataset{}
	}
	return datasets, nil
}

// permissionsDocument is the serialized shape of the tenant permissions
// document.
type permissionsDocument struct {
	Tenant string                   `json:"tenant"`
	Users  []permissions.User       `json:"users"`
	Groups []permissions.Group      `json:"groups"`
	Roles  *permissions.ResolvedSet `json:"roles"`
}

// WritePermissions validates and stages the tenant's permissions document.
func (a *Assembler) WritePermissions(ctx context.Context, staging *Staging) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users := a.in.Users
	if users == nil {
		users = []permissions.User{}
	}
	groups := a.in.Groups
	if groups == nil {
		groups = []permissions.Group{}
	}
	doc := permissionsDocument{
		Tenant: a.in.Tenant,
		Users:  users,
		Groups: groups,
		Roles:  a.in.Resolved,
	}

	if a.validator != nil && a.in.Config.Generator.ValidateSchema {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to serialize permissions document: %w", err)
		}
		violations, err := a.validator.Validate("permissions", data)
		if err != nil {
			return fmt.Errorf("schema validation of permissions failed: %w", err)
		}
		if len(violations) > 0 {
			a.countViolations("permissions", len(violations))
			for _, v := range violations {
				a.report.Errorf("Validation error in permissions at %s: %s", v.Path, v.Message)
			}
			if !a.in.Policy.IgnoreErrors {
				return fmt.Errorf("permissions document failed schema validation")
			}
			a.report.Warnf("Writing permissions despite validation errors (ignore_errors)")
		} else {
			a.report.Infof("Service permissions validate against schema")
		}
	}

	a.report.Infof("Writing '%s' permissions file", PermissionsFile)
	return staging.WriteDocument(PermissionsFile, doc)
}
