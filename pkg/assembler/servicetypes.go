package assembler

import "github.com/geoserve/confgen/pkg/resource"

// Well-known service names with resource splicing behavior. Any other
// service name produces a config-only passthrough document.
const (
	ServiceOGC         = "ogc"
	ServiceFeatureInfo = "featureInfo"
	ServiceMapViewer   = "mapViewer"
	ServiceData        = "data"
	ServiceSearch      = "search"
)

// serviceResourceTypes maps a service name to the resource types whose
// resolved permissions and resource listings it consumes. Tenant-declared
// overrides for a service replace exactly these types.
var serviceResourceTypes = map[string][]string{
	ServiceOGC: {
		resource.TypeMap,
		resource.TypeLayer,
		resource.TypeAttribute,
		resource.TypePrintTemplate,
	},
	ServiceFeatureInfo: {
		resource.TypeFeatureInfoService,
		resource.TypeFeatureInfoLayer,
	},
	ServiceMapViewer: {
		resource.TypeViewerTask,
	},
	ServiceData: {
		resource.TypeDataResource,
	},
	ServiceSearch: {
		resource.TypeSolrFacet,
	},
}

// ResourceTypesForService returns the resource types relevant to a service
// name, or nil for config-only services.
func ResourceTypesForService(name string) []string {
	return serviceResourceTypes[name]
}
