package wcl

import (
	"embed"
	"text/template"
)

// QueryFS holds the GraphQL query templates. The cache layer fingerprints
// it to drop cached responses when a query changes.
//
//go:embed query
var QueryFS embed.FS

var (
	tmplReportMeta    = template.Must(template.ParseFS(QueryFS, "query/tmplReportMeta.tmpl"))
	tmplPlayerDetails = template.Must(template.ParseFS(QueryFS, "query/tmplPlayerDetails.tmpl"))
	tmplEvents        = template.Must(template.ParseFS(QueryFS, "query/tmplEvents.tmpl"))
	tmplTable         = template.Must(template.ParseFS(QueryFS, "query/tmplTable.tmpl"))
)
