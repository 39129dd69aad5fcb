package resource

// Built-in resource type names.
const (
	TypeMap                = "map"
	TypeLayer              = "layer"
	TypeAttribute          = "attribute"
	TypePrintTemplate      = "print_template"
	TypeViewerTask         = "viewer_task"
	TypeDataResource       = "data_resource"
	TypeFeatureInfoService = "feature_info_service"
	TypeFeatureInfoLayer   = "feature_info_layer"
	TypeSolrFacet          = "solr_facet"
)

// Type describes a resource type. ListOrder defines the processing and
// output order across types; lower values come first.
type Type struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	ListOrder   int    `json:"list_order,omitempty" yaml:"list_order,omitempty"`
}

// BuiltinTypes returns the built-in resource types in their canonical order.
func BuiltinTypes() []Type {
	return []Type{
		{Name: TypeMap, Description: "Map project", ListOrder: 10},
		{Name: TypeLayer, Description: "Map layer or layer group", ListOrder: 20},
		{Name: TypeAttribute, Description: "Layer attribute", ListOrder: 30},
		{Name: TypePrintTemplate, Description: "Print layout template", ListOrder: 40},
		{Name: TypeViewerTask, Description: "Viewer task", ListOrder: 50},
		{Name: TypeDataResource, Description: "Editable data resource", ListOrder: 60},
		{Name: TypeFeatureInfoService, Description: "Feature info service", ListOrder: 70},
		{Name: TypeFeatureInfoLayer, Description: "Feature info layer", ListOrder: 80},
		{Name: TypeSolrFacet, Description: "Search facet", ListOrder: 90},
	}
}

// Record is a raw resource row as supplied by a collaborator (store query
// or tenant-declared override). Parent references another record by ID.
type Record struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Parent *int64 `json:"parent,omitempty"`
}
