// Command orgseed copies a hierarchically related subset of records from
// one CRM org into another, per spec.md. The org-credentials layer and the
// connection library itself are external collaborators (spec.md §1) —
// dialConnection below is the documented extension point a deployment
// wires up with its own auth flow and SOQL/bulk-API client.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/johnwards/orgseed/internal/cli"
	"github.com/johnwards/orgseed/internal/orgconn"
)

func main() {
	os.Exit(cli.Execute(dialConnection, nil))
}

// dialConnection is the hook spec.md §1 leaves external: given an org
// alias (as passed to -s/-t) and the API version configured via
// ORGSEED_API_VERSION, authenticate and return a Connection implementing
// SOQL query, paginated fetch, bulk create/update/upsert, and authenticated
// file download. A deployment of orgseed replaces this with its real
// credential store and HTTP client; the pipeline core never knows the
// difference, since it only ever sees the orgconn.Connection interface.
func dialConnection(ctx context.Context, orgAlias, apiVersion string) (orgconn.Connection, error) {
	return nil, fmt.Errorf("no connection library configured for org %q (api version %s): the org-credentials layer is an external collaborator (spec.md §1) that this binary does not implement", orgAlias, apiVersion)
}
