package projects

// Project is the extracted metadata of one map project (theme).
type Project struct {
	Name           string   `json:"name"`
	Title          string   `json:"title,omitempty"`
	CRS            string   `json:"crs,omitempty"`
	Extent         []float64 `json:"extent,omitempty"`
	Layers         []Layer  `json:"layers"`
	PrintTemplates []string `json:"print_templates,omitempty"`
}

// Layer describes a layer or layer group within a project.
type Layer struct {
	Name       string      `json:"name"`
	Title      string      `json:"title,omitempty"`
	Queryable  bool        `json:"queryable,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Sublayers  []Layer     `json:"sublayers,omitempty"`
	DataSource *DataSource `json:"data_source,omitempty"`
}

// Attribute describes a layer attribute (field).
type Attribute struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	DataType string `json:"data_type,omitempty"`
}

// DataSource describes the database backing an editable layer.
type DataSource struct {
	Database   string `json:"database"`
	Schema     string `json:"schema,omitempty"`
	Table      string `json:"table"`
	PrimaryKey string `json:"primary_key,omitempty"`
	Geometry   string `json:"geometry,omitempty"`
	ReadOnly   bool   `json:"read_only,omitempty"`
}

// WalkLayers visits every layer of the project depth first, parents before
// sublayers.
func (p *Project) WalkLayers(visit func(l *Layer)) {
	var walk func(layers []Layer)
	walk = func(layers []Layer) {
		for i := range layers {
			visit(&layers[i])
			walk(layers[i].Sublayers)
		}
	}
	walk(p.Layers)
}
