// Package tenant loads and validates the declarative tenant configuration.
//
// A tenant config lives at <input>/<tenant>/tenantConfig.json (JSON with
// comments) or tenantConfig.yaml. It carries the generation policy, the
// list of service specs and the collaborator locations (config DB URL,
// project metadata directory).
package tenant
